package quotations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// ProductLookup resolves catalog products for line items.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// ItemBuilder turns item requests into frozen line items.
type ItemBuilder struct {
	products ProductLookup
}

func NewItemBuilder(products ProductLookup) ItemBuilder {
	return ItemBuilder{products: products}
}

// BuildAll builds every item in order; the first failure aborts.
func (b ItemBuilder) BuildAll(ctx context.Context, reqs []ItemRequest) ([]LineItem, error) {
	if len(reqs) == 0 {
		return nil, shared.Validationf("a quotation needs at least one item")
	}
	items := make([]LineItem, 0, len(reqs))
	for i, req := range reqs {
		item, err := b.Build(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		item.Position = i + 1
		items = append(items, item)
	}
	return items, nil
}

// Build produces one line item. Catalog items default their unit price to
// the product's selling price and copy the product into the snapshot.
func (b ItemBuilder) Build(ctx context.Context, req ItemRequest) (LineItem, error) {
	switch {
	case req.ProductID != nil:
		return b.catalogItem(ctx, *req.ProductID, req)
	case req.Snapshot != nil:
		return customItem(req)
	default:
		return LineItem{}, shared.Validationf("either product_id or snapshot is required")
	}
}

func (b ItemBuilder) catalogItem(ctx context.Context, productID int64, req ItemRequest) (LineItem, error) {
	if productID <= 0 {
		return LineItem{}, shared.Validationf("product_id must be positive")
	}
	product, err := b.products.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LineItem{}, shared.NotFoundf("product %d", productID)
		}
		return LineItem{}, shared.Processing("load product", err)
	}

	quantity, err := coerceQuantity(req.Quantity)
	if err != nil {
		return LineItem{}, err
	}
	unitPrice := product.Pricing.SellingPrice
	if req.UnitPrice.Set {
		unitPrice = req.UnitPrice.Value
	}
	if err := checkUnitPrice(unitPrice); err != nil {
		return LineItem{}, err
	}
	discount, err := coerceDiscount(req.DiscountPercent)
	if err != nil {
		return LineItem{}, err
	}

	snap := Snapshot{
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Subcategory: product.Subcategory,
		Brand:       product.Brand,
		Price:       product.Pricing.SellingPrice,
	}
	return NewCatalogItem(product.ID, snap, quantity, unitPrice, discount), nil
}

func customItem(req ItemRequest) (LineItem, error) {
	s := req.Snapshot
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return LineItem{}, shared.Validationf("snapshot.name is required for custom items")
	}
	if !req.Quantity.Set {
		return LineItem{}, shared.Validationf("quantity is required for custom items")
	}
	if !req.UnitPrice.Set {
		return LineItem{}, shared.Validationf("unit_price is required for custom items")
	}
	quantity, err := coerceQuantity(req.Quantity)
	if err != nil {
		return LineItem{}, err
	}
	if err := checkUnitPrice(req.UnitPrice.Value); err != nil {
		return LineItem{}, err
	}
	discount, err := coerceDiscount(req.DiscountPercent)
	if err != nil {
		return LineItem{}, err
	}

	price := req.UnitPrice.Value
	if s.Price.Set {
		if !finite(s.Price.Value) || s.Price.Value < 0 {
			return LineItem{}, shared.Validationf("snapshot.price must be a non-negative number")
		}
		price = s.Price.Value
	}
	snap := Snapshot{
		Name:        name,
		Description: s.Description,
		Category:    s.Category,
		Subcategory: s.Subcategory,
		Brand:       s.Brand,
		Price:       price,
	}
	return NewCustomItem(snap, quantity, req.UnitPrice.Value, discount), nil
}

// coerceQuantity defaults a missing or malformed quantity to 1. A present
// value must be a whole number of at least 1; zero, negative and fractional
// quantities are rejected rather than rounded.
func coerceQuantity(n Number) (int, error) {
	if !n.Set {
		return 1, nil
	}
	if !finite(n.Value) || n.Value < 1 || n.Value != math.Trunc(n.Value) || n.Value > math.MaxInt32 {
		return 0, shared.Validationf("quantity must be a whole number of at least 1")
	}
	return int(n.Value), nil
}

// coerceDiscount defaults a missing or malformed discount to 0.
func coerceDiscount(n Number) (float64, error) {
	if !n.Set {
		return 0, nil
	}
	if !finite(n.Value) || n.Value < 0 || n.Value > 100 {
		return 0, shared.Validationf("discount_percent must be between 0 and 100")
	}
	return n.Value, nil
}

func checkUnitPrice(v float64) error {
	if !finite(v) || v < 0 {
		return shared.Validationf("unit_price must be a non-negative number")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
