package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/quipu-erp/quipu-erp/internal/app"
	"github.com/quipu-erp/quipu-erp/internal/platform/db"
	"github.com/quipu-erp/quipu-erp/internal/shared"
	"github.com/quipu-erp/quipu-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := shared.NewIdempotencyStore(pool, "LEDGER").Prune(ctx, 7*24*time.Hour); err != nil {
		logger.Warn("prune idempotency keys", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger)
	mappingJob := jobs.NewMappingHealthJob(pool, logger)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	mappingTask, err := jobs.NewMappingHealthTask(jobs.MappingHealthPayload{})
	if err != nil {
		logger.Error("build mapping health task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskMappingHealth, Handler: mappingJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: integrityTask},
			{Spec: "30 3 * * *", Task: mappingTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Kick off both scans immediately so a fresh deploy does not wait for
	// the overnight schedule.
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	if err := client.Enqueue(ctx, integrityTask); err != nil {
		logger.Warn("enqueue initial integrity scan", slog.Any("error", err))
	}
	if err := client.Enqueue(ctx, mappingTask); err != nil {
		logger.Warn("enqueue initial mapping health scan", slog.Any("error", err))
	}
	_ = client.Close()

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
