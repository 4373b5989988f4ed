package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/jobs"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notify"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("jobs-worker starting up",
		"env", cfg.Env,
		"interval", cfg.WorkerInterval.String(),
		"reminder_hour", cfg.ReminderHour,
		"report_day", cfg.ReportDayOfMonth,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns:        cfg.PostgresMaxConn,
		ApplicationName: "jobs-worker",
	})
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

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

	identitySvc := identity.NewService(
		identity.NewPgStore(pgPool),
		identity.NewBcryptHasher(cfg.BcryptCost),
		identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		cfg.MaxActiveAccounts,
		logger,
	)

	sender, err := notify.NewEmailSender(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("email sender setup failed", "error", err)
		os.Exit(1)
	}

	var queue jobs.Queue
	if cfg.ExportQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(rootCtx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("aws config load failed", "error", err)
			os.Exit(1)
		}
		queue = jobs.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ExportQueueURL)
	}

	runner := jobs.NewRunner(jobs.Deps{
		Appointments: appointment.NewPgRepository(pgPool),
		Clients:      identitySvc,
		Tasks:        redisclient.NewTaskStore(rdb, cfg.ExportTaskTTL),
		Queue:        queue,
		Sender:       sender,
		Location:     cfg.Location(),
		Metrics:      metrics.NewJobMetrics(prometheus.NewRegistry()),
	}, logger)

	var exportWorker *jobs.Worker
	if queue != nil {
		exportWorker = jobs.NewWorker(runner, queue, 2, logger)
		exportWorker.Start(rootCtx)
		logger.Info("export queue consumer started")
	} else {
		logger.Info("EXPORT_QUEUE_URL not set, exports are drained by the api-server")
	}

	scheduler := jobs.NewScheduler(runner, redisclient.NewJobClaims(rdb), cfg.ReminderHour, cfg.ReportDayOfMonth, logger)

	// Run once at startup
	runOnce(rootCtx, scheduler, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping jobs worker")
			if exportWorker != nil {
				exportWorker.Wait()
			}
			return
		case <-ticker.C:
			runOnce(rootCtx, scheduler, logger)
		}
	}
}

func runOnce(ctx context.Context, scheduler *jobs.Scheduler, logger *logging.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	scheduler.Tick(runCtx, start)
	logger.Debug("scheduler tick complete", "duration", time.Since(start).String())
}
