package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/jobs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	"github.com/hackgods/clinic-booking/internal/projection"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("api-server starting up", "env", cfg.Env, "http_port", cfg.HTTPPort, "version", version)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:        cfg.PostgresMaxConn,
		ApplicationName: "api-server",
	})
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", "error", err)
		}
	}()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	identitySvc := identity.NewService(
		identity.NewPgStore(pgPool),
		identity.NewBcryptHasher(cfg.BcryptCost),
		identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		cfg.MaxActiveAccounts,
		logger,
	)
	if cfg.AdminPassword != "" {
		if err := identitySvc.EnsureAdmin(rootCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
	}

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	appointmentSvc := appointment.NewService(repo, locker, cfg, metrics.NewBookingMetrics(registry), logger)
	availabilitySvc := availability.NewService(availability.NewPgStore(pgPool), logger)
	projectionSvc := projection.NewService(repo, identitySvc, cfg.Location())

	sender, err := notify.NewEmailSender(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("email sender setup failed", "error", err)
		os.Exit(1)
	}

	var queue jobs.Queue
	inProcess := cfg.ExportQueueURL == ""
	if inProcess {
		queue = jobs.NewMemoryQueue(64)
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(rootCtx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("aws config load failed", "error", err)
			os.Exit(1)
		}
		queue = jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ExportQueueURL)
	}

	runner := jobs.NewRunner(jobs.Deps{
		Appointments: repo,
		Clients:      identitySvc,
		Tasks:        redisclient.NewTaskStore(rdb, cfg.ExportTaskTTL),
		Queue:        queue,
		Sender:       sender,
		Location:     cfg.Location(),
		Metrics:      metrics.NewJobMetrics(registry),
	}, logger)

	// Without SQS the exports are drained here; otherwise cmd/jobs-worker consumes them.
	var exportWorker *jobs.Worker
	if inProcess {
		exportWorker = jobs.NewWorker(runner, queue, 2, logger)
		exportWorker.Start(rootCtx)
		logger.Info("in-process export worker started")
	}

	health := api.NewHealthHandler(
		func(ctx context.Context) error { return pgPool.Ping(ctx) },
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		cfg.Env,
		version,
	)

	router := api.NewRouter(api.RouterConfig{
		Identity:       identitySvc,
		Appointments:   appointmentSvc,
		Availability:   availabilitySvc,
		Projection:     projectionSvc,
		Jobs:           runner,
		Health:         health,
		Logger:         logger,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		Gatherer:       registry,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		JobToken:       cfg.JobToken,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if exportWorker != nil {
		exportWorker.Wait()
	}
	logger.Info("api-server stopped")
}
