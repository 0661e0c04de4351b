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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/reseller/cmd/reseller/cli"
	"github.com/odyssey-erp/reseller/internal/app"
	"github.com/odyssey-erp/reseller/internal/observability"
	"github.com/odyssey-erp/reseller/internal/platform/cache"
	"github.com/odyssey-erp/reseller/internal/platform/db"
	"github.com/odyssey-erp/reseller/internal/platform/mail"
	"github.com/odyssey-erp/reseller/internal/platform/storage"
	"github.com/odyssey-erp/reseller/internal/pricing"
	"github.com/odyssey-erp/reseller/internal/rbac"
	"github.com/odyssey-erp/reseller/internal/reports"
	"github.com/odyssey-erp/reseller/internal/sales/quotations"
	"github.com/odyssey-erp/reseller/jobs"
	"github.com/odyssey-erp/reseller/report"
)

func main() {
	_ = godotenv.Load()

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

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, cfg.RedisOptions().Asynq(), os.Args[1:], os.Stdout); err != nil {
			logger.Error("cli", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.DBOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.PGMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		// Reports fall back to uncached reads when Redis is down.
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
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn("ensure bucket", slog.String("bucket", cfg.MinioBucket), slog.Any("error", err))
	}

	reportClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	renderer, err := report.NewQuotationRenderer(reportClient, cfg.Language())
	if err != nil {
		logger.Error("init quotation renderer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	services := app.NewServices(cfg, app.Infra{
		Pool:      pool,
		Redis:     redisClient,
		Renderer:  renderer,
		Documents: objectStore,
		Mailer:    mail.NewSMTPSender(cfg.MailConfig()),
		Metrics:   metrics,
	}, logger)

	jobClient := jobs.NewClient(cfg.RedisOptions().Asynq())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.RedisOptions().Asynq())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		QuotationHandler:   quotations.NewHandler(logger, services.Quotations, jobClient, rbacMiddleware),
		PricingHandler:     pricing.NewHandler(logger, services.Pricing, jobClient, rbacMiddleware),
		ReportsHandler:     reports.NewHandler(logger, services.Reports, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		RendererHandler:    report.NewHandler(reportClient, logger),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if redisClient != nil {
		group.Go(func() error {
			err := services.ReportCache.ListenForInvalidation(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("report cache listener stopped", slog.Any("error", err))
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
