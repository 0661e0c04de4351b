package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/reseller/internal/app"
	jobmetrics "github.com/odyssey-erp/reseller/internal/jobs"
	"github.com/odyssey-erp/reseller/internal/observability"
	"github.com/odyssey-erp/reseller/internal/platform/cache"
	"github.com/odyssey-erp/reseller/internal/platform/db"
	"github.com/odyssey-erp/reseller/internal/platform/mail"
	"github.com/odyssey-erp/reseller/internal/platform/storage"
	"github.com/odyssey-erp/reseller/jobs"
	"github.com/odyssey-erp/reseller/report"
)

func main() {
	_ = godotenv.Load()

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

	pool, err := db.New(ctx, cfg.DBOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	objectStore, err := storage.New(cfg.StorageConfig())
	if err != nil {
		logger.Error("init object storage", slog.Any("error", err))
		os.Exit(1)
	}

	renderer, err := report.NewQuotationRenderer(report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout), cfg.Language())
	if err != nil {
		logger.Error("init quotation renderer", slog.Any("error", err))
		os.Exit(1)
	}

	domainMetrics := observability.NewMetrics()
	services := app.NewServices(cfg, app.Infra{
		Pool:      pool,
		Redis:     redisClient,
		Renderer:  renderer,
		Documents: objectStore,
		Mailer:    mail.NewSMTPSender(cfg.MailConfig()),
		Metrics:   domainMetrics,
	}, logger)

	metrics := jobmetrics.NewMetrics(domainMetrics.Registerer())
	sendJob := jobs.NewSendQuotationJob(services.Quotations, logger, metrics)
	rateJob := jobs.NewExchangeRateRefreshJob(services.Pricing, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOptions().Asynq(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendQuotation, Handler: sendJob.Handle},
			{Type: jobs.TaskExchangeRateRefresh, Handler: rateJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: domainMetrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
