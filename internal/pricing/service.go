package pricing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// Store is the slice of the catalog repository the pricing service mutates.
type Store interface {
	Get(ctx context.Context, id int64) (products.Product, error)
	UpdatePricing(ctx context.Context, id int64, pricing products.Pricing) error
	ListWithForeignPrice(ctx context.Context) ([]products.Product, error)
	ApplyExchangeRate(ctx context.Context, id int64, update products.RateUpdate) error
}

// Invalidator drops derived report data after pricing writes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// RefreshRecorder observes bulk refresh outcomes.
type RefreshRecorder interface {
	ObserveRateRefresh(updated, failed int)
}

// ProductPricing pairs a product with its financial summary.
type ProductPricing struct {
	Product products.Product `json:"product"`
	Summary Breakdown        `json:"financial_summary"`
}

// RefreshResult reports the outcome of a bulk exchange-rate refresh.
type RefreshResult struct {
	UpdatedCount int     `json:"updated_count"`
	FailedCount  int     `json:"failed_count"`
	ExchangeRate float64 `json:"exchange_rate"`
}

type Options struct {
	StoreTimeout time.Duration
	Now          func() time.Time
}

type Service struct {
	store       Store
	calc        Calculator
	invalidator Invalidator
	recorder    RefreshRecorder
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time
}

func NewService(store Store, calc Calculator, invalidator Invalidator, recorder RefreshRecorder, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Service{
		store:       store,
		calc:        calc,
		invalidator: invalidator,
		recorder:    recorder,
		logger:      logger,
		timeout:     opts.StoreTimeout,
		now:         opts.Now,
	}
}

// SetProductPricing runs the forward calculation and persists the result.
func (s *Service) SetProductPricing(ctx context.Context, productID int64, in Input) (ProductPricing, error) {
	breakdown, err := s.calc.Forward(in)
	if err != nil {
		return ProductPricing{}, err
	}

	product, err := s.getProduct(ctx, productID)
	if err != nil {
		return ProductPricing{}, err
	}

	pricing := breakdown.ToPricing()
	now := s.now()
	pricing.LastPricingUpdate = &now

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.UpdatePricing(storeCtx, productID, pricing); err != nil {
		return ProductPricing{}, shared.Processing("update product pricing", err)
	}
	s.invalidate(ctx)

	product.Pricing = pricing
	s.logger.Info("product pricing updated",
		slog.Int64("product_id", productID),
		slog.Float64("selling_price", breakdown.SellingPrice),
		slog.Float64("margin_percent", breakdown.MarginPercent),
	)
	return ProductPricing{Product: product, Summary: breakdown}, nil
}

// GetProductPricing returns the stored product and its recomputed summary.
func (s *Service) GetProductPricing(ctx context.Context, productID int64) (ProductPricing, error) {
	product, err := s.getProduct(ctx, productID)
	if err != nil {
		return ProductPricing{}, err
	}
	return ProductPricing{Product: product, Summary: s.calc.ReadBack(product.Pricing)}, nil
}

// BulkRefreshExchangeRate reprices every product holding a foreign purchase
// price. Each product is updated independently; failures are logged and
// counted. Cancellation stops the loop between products.
func (s *Service) BulkRefreshExchangeRate(ctx context.Context, rate float64) (RefreshResult, error) {
	if rate <= 0 {
		return RefreshResult{}, shared.Validationf("exchange_rate must be greater than 0")
	}

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	items, err := s.store.ListWithForeignPrice(listCtx)
	cancel()
	if err != nil {
		return RefreshResult{}, shared.Processing("list products with foreign price", err)
	}

	result := RefreshResult{ExchangeRate: rate}
	for _, p := range items {
		if ctx.Err() != nil {
			s.logger.Warn("exchange rate refresh interrupted",
				slog.Int("updated", result.UpdatedCount),
				slog.Int("remaining", len(items)-result.UpdatedCount-result.FailedCount),
			)
			break
		}
		if p.Pricing.PurchasePriceForeign <= 0 {
			continue
		}
		local, profit := RepriceForRate(p.Pricing, rate)
		update := products.RateUpdate{
			ExchangeRate:       rate,
			PurchasePriceLocal: local,
			ProfitAmount:       profit,
			UpdatedAt:          s.now(),
		}
		itemCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.store.ApplyExchangeRate(itemCtx, p.ID, update)
		cancel()
		if err != nil {
			result.FailedCount++
			s.logger.Warn("exchange rate refresh item failed",
				slog.Int64("product_id", p.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.UpdatedCount++
	}

	if result.UpdatedCount > 0 {
		s.invalidate(ctx)
	}
	if s.recorder != nil {
		s.recorder.ObserveRateRefresh(result.UpdatedCount, result.FailedCount)
	}
	s.logger.Info("exchange rate refreshed",
		slog.Float64("exchange_rate", rate),
		slog.Int("updated", result.UpdatedCount),
		slog.Int("failed", result.FailedCount),
	)
	return result, nil
}

func (s *Service) getProduct(ctx context.Context, id int64) (products.Product, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	product, err := s.store.Get(storeCtx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return products.Product{}, err
		}
		return products.Product{}, shared.Processing("load product", err)
	}
	return product, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("report cache invalidation failed", slog.Any("error", err))
	}
}
