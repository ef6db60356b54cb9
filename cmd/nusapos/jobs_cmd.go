package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nusapos/nusapos/cmd/nusapos/cli"
	"github.com/nusapos/nusapos/internal/app"
)

// runJobsCommand handles `nusapos jobs trigger <name>` and `nusapos jobs stats`.
func runJobsCommand(ctx context.Context, logger *slog.Logger, cfg *app.Config, args []string) {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	if len(args) == 0 {
		logger.Error("usage: nusapos jobs [trigger <name>|stats|scheduled]")
		os.Exit(2)
	}

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			logger.Error("usage: nusapos jobs trigger <name>")
			os.Exit(2)
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			logger.Error("trigger job", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("job enqueued", slog.String("id", info.ID), slog.String("type", info.Type))
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			logger.Error("inspect queue", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("queue stats",
			slog.String("queue", stats.Queue),
			slog.Int("pending", stats.Pending),
			slog.Int("active", stats.Active),
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("retry", stats.Retry),
		)
	case "scheduled":
		tasks, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			logger.Error("list scheduled", slog.Any("error", err))
			os.Exit(1)
		}
		for _, t := range tasks {
			logger.Info("scheduled task", slog.String("id", t.ID), slog.String("type", t.Type))
		}
	default:
		logger.Error("unknown jobs subcommand", slog.String("arg", args[0]))
		os.Exit(2)
	}
}
