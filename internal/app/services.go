package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/observability"
	"github.com/odyssey-erp/reseller/internal/pricing"
	"github.com/odyssey-erp/reseller/internal/reports"
	"github.com/odyssey-erp/reseller/internal/sales/customers"
	"github.com/odyssey-erp/reseller/internal/sales/quotations"
)

// Infra is the set of connected backends shared by the API and the worker.
type Infra struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Renderer  quotations.Renderer
	Documents quotations.DocumentStore
	Mailer    quotations.Mailer
	Metrics   *observability.Metrics
}

// Services are the domain services built on top of Infra.
type Services struct {
	Quotations  *quotations.Service
	Pricing     *pricing.Service
	Reports     *reports.Service
	ReportCache *reports.Cache
}

// NewServices wires repositories and services.
func NewServices(cfg *Config, infra Infra, logger *slog.Logger) *Services {
	productRepo := products.NewRepository(infra.Pool)
	customerRepo := customers.NewRepository(infra.Pool)
	quotationRepo := quotations.NewRepository(infra.Pool)

	reportCache := reports.NewCache(infra.Redis, cfg.ReportCacheTTL)
	reportService := reports.NewService(productRepo, reportCache, logger, cfg.StoreTimeout)

	pricingService := pricing.NewService(
		productRepo,
		pricing.NewCalculator(cfg.PricingDefaults()),
		reportCache,
		infra.Metrics,
		logger,
		pricing.Options{StoreTimeout: cfg.StoreTimeout},
	)

	allocator := quotations.NewAllocator(cfg.QuoteNumberPrefix, quotationRepo, quotationRepo, infra.Metrics, logger)
	quotationService := quotations.NewService(quotations.Deps{
		Repo:      quotationRepo,
		Customers: customerRepo,
		Products:  productRepo,
		Allocator: allocator,
		Renderer:  infra.Renderer,
		Documents: infra.Documents,
		Mailer:    infra.Mailer,
		Metrics:   infra.Metrics,
		Logger:    logger,
	}, cfg.QuotationOptions())

	return &Services{
		Quotations:  quotationService,
		Pricing:     pricingService,
		Reports:     reportService,
		ReportCache: reportCache,
	}
}
