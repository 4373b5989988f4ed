package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/hackgods/clinic-booking/migrations"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

func main() {
	direction := flag.String("direction", "up", "up, down or force")
	version := flag.Int("version", -1, "target version for force")
	flag.Parse()

	_ = godotenv.Load()
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Ping(); err != nil {
		logger.Error("ping db", "error", err)
		os.Exit(1)
	}

	dbDriver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		logger.Error("db driver", "error", err)
		os.Exit(1)
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("source driver", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Error("create migrator", "error", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	switch *direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "force":
		if *version < 0 {
			logger.Error("force requires -version")
			os.Exit(1)
		}
		err = m.Force(*version)
	default:
		logger.Error("unknown direction", "direction", *direction)
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migrate failed", "direction", *direction, "error", err)
		os.Exit(1)
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Error("read version", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "direction", *direction, "version", v, "dirty", dirty)
}
