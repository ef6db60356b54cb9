package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/app"
	"github.com/nusapos/nusapos/internal/auth"
	jobmetrics "github.com/nusapos/nusapos/internal/jobs"
	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/sales"
	"github.com/nusapos/nusapos/internal/shared"
	"github.com/nusapos/nusapos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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

	index := rbac.NewIndex(rbac.DefaultMatrix())

	tasks := &jobs.Tasks{
		Logger:      logger,
		Metrics:     jobmetrics.NewMetrics(nil),
		Auth:        auth.NewService(auth.NewRepository(pool)),
		Catalog:     rbac.NewCatalogSync(pool, index),
		Sales:       sales.NewService(sales.NewPGRepository(pool), nil, nil, cfg.SalesTaxRate),
		Idempotency: shared.NewIdempotencyStore(pool, cfg.IdempotencyTTL),
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Tasks:     tasks,
		Cron:      jobs.DefaultCron(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
