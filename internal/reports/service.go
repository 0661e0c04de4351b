package reports

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// ProductLister reads the catalog rows reports are computed from.
type ProductLister interface {
	List(ctx context.Context, filter products.ListFilter) ([]products.Product, error)
}

// Service builds margin and profitability reports, caching the results.
type Service struct {
	repo    ProductLister
	cache   *Cache
	logger  *slog.Logger
	timeout time.Duration
	builds  singleflight.Group
}

func NewService(repo ProductLister, cache *Cache, logger *slog.Logger, storeTimeout time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Service{repo: repo, cache: cache, logger: logger, timeout: storeTimeout}
}

// MarginReport lists active products matching the filter with their margins.
func (s *Service) MarginReport(ctx context.Context, filter MarginFilter) (MarginReport, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return MarginReport{}, err
	}
	var report MarginReport
	err = s.load(ctx, keyMargins(filter), &report, func(ctx context.Context) (any, error) {
		items, err := s.list(ctx, products.ListFilter{
			Category:    filter.Category,
			Subcategory: filter.Subcategory,
			Brand:       filter.Brand,
			Search:      filter.Search,
			ActiveOnly:  true,
		})
		if err != nil {
			return nil, err
		}
		return BuildMarginReport(FiguresOf(items), filter), nil
	})
	return report, err
}

// Profitability groups every active product by category, subcategory and brand.
func (s *Service) Profitability(ctx context.Context) (Profitability, error) {
	var report Profitability
	err := s.load(ctx, keyProfitability(), &report, func(ctx context.Context) (any, error) {
		items, err := s.list(ctx, products.ListFilter{ActiveOnly: true})
		if err != nil {
			return nil, err
		}
		return BuildProfitability(FiguresOf(items)), nil
	})
	return report, err
}

// Bump drops every cached report.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) list(ctx context.Context, filter products.ListFilter) ([]products.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Processing("list products for report", err)
	}
	return items, nil
}

// load collapses concurrent builds of the same report and serves the cache.
func (s *Service) load(ctx context.Context, parts []string, dest any, build func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		value, err := build(ctx)
		if err != nil {
			return err
		}
		return copyJSON(value, dest)
	}

	// The shared build outlives any one caller giving up.
	buildCtx := context.WithoutCancel(ctx)
	result := s.builds.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(buildCtx, s.timeout)
		defer cancel()
		var raw jsonValue
		hit, err := s.cache.FetchJSON(ctx, key, &raw, build)
		if err != nil {
			return nil, err
		}
		if !hit {
			s.logger.Debug("report built", slog.String("key", key))
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return shared.Processing("build report", ctx.Err())
	case res := <-result:
		if res.Err != nil {
			return res.Err
		}
		return copyJSON(res.Val, dest)
	}
}
