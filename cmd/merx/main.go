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

	"github.com/merx-ops/merx/internal/app"
	"github.com/merx-ops/merx/internal/auth"
	"github.com/merx-ops/merx/internal/lots"
	"github.com/merx-ops/merx/internal/observability"
	"github.com/merx-ops/merx/internal/platform/cache"
	"github.com/merx-ops/merx/internal/platform/db"
	"github.com/merx-ops/merx/internal/platform/session"
	"github.com/merx-ops/merx/internal/purchases"
	"github.com/merx-ops/merx/internal/sales"
	"github.com/merx-ops/merx/jobs"
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

	sessionManager := session.NewManager(redisClient, "merx_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	lotRepo := lots.NewRepository(pool)
	summaryCache := lots.NewSummaryCache(redisClient, cfg.SummaryCacheTTL)
	ledger := lots.NewService(lotRepo, summaryCache)
	stockHandler := lots.NewHandler(logger, ledger)

	purchaseRepo := purchases.NewRepository(pool)
	purchaseService := purchases.NewService(purchaseRepo, ledger)
	purchasesHandler := purchases.NewHandler(logger, purchaseService)

	saleRepo := sales.NewRepository(pool)
	saleService := sales.NewService(saleRepo, ledger)
	salesHandler := sales.NewHandler(logger, saleService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		PurchasesHandler: purchasesHandler,
		SalesHandler:     salesHandler,
		StockHandler:     stockHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
