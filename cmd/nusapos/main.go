package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nusapos/nusapos/internal/app"
	"github.com/nusapos/nusapos/internal/auth"
	"github.com/nusapos/nusapos/internal/inventory"
	"github.com/nusapos/nusapos/internal/observability"
	"github.com/nusapos/nusapos/internal/platform/cache"
	"github.com/nusapos/nusapos/internal/platform/db"
	"github.com/nusapos/nusapos/internal/purchasing"
	"github.com/nusapos/nusapos/internal/rbac"
	"github.com/nusapos/nusapos/internal/roles"
	"github.com/nusapos/nusapos/internal/sales"
	"github.com/nusapos/nusapos/internal/shared"
	"github.com/nusapos/nusapos/internal/users"
	"github.com/nusapos/nusapos/jobs"
	"github.com/nusapos/nusapos/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		runJobsCommand(ctx, logger, cfg, os.Args[2:])
		return
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(migrations.Files, cfg.PGDSN); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "nusapos_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool, cfg.IdempotencyTTL)

	index := rbac.NewIndex(rbac.DefaultMatrix())
	resolver := rbac.NewResolver(pool)
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{
		Guard:   rbac.Guard{Index: index},
		Logger:  logger,
		Metrics: metrics,
	}
	accessSyncer := &rbac.Syncer{
		Source:   resolver,
		Interval: cfg.AccessRefreshInterval,
		Logger:   logger,
	}

	if _, err := rbac.NewCatalogSync(pool, index).Run(ctx); err != nil {
		logger.Warn("permission catalog sync", slog.Any("error", err))
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, resolver, sessionManager, csrfManager)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, auditLogger, rbacMiddleware)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, index)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	permissionsHandler := rbac.NewPermissionsHandler(logger, index, rbacMiddleware)

	salesRepo := sales.NewPGRepository(pool)
	salesService := sales.NewService(salesRepo, approvalRecorder, idempotencyStore, cfg.SalesTaxRate)
	salesHandler := sales.NewHandler(logger, salesService, auditLogger, rbacMiddleware)

	inventoryRepo := inventory.NewPGRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, auditLogger, rbacMiddleware)

	purchasingRepo := purchasing.NewPGRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, inventoryService, approvalRecorder)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, auditLogger, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AccessSyncer:       accessSyncer,
		RBAC:               rbacMiddleware,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		SalesHandler:       salesHandler,
		InventoryHandler:   inventoryHandler,
		PurchasingHandler:  purchasingHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
