package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/reseller/internal/shared"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = fmt.Errorf("product %w", shared.ErrNotFound)

type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	ListWithForeignPrice(ctx context.Context) ([]Product, error)
	UpdatePricing(ctx context.Context, id int64, pricing Pricing) error
	ApplyExchangeRate(ctx context.Context, id int64, update RateUpdate) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, sku, name, description, category, subcategory, brand, is_active,
	purchase_price_foreign::float8, exchange_rate::float8, purchase_price_local::float8,
	financing_interest_percent::float8, delivery_cost::float8, target_margin_percent::float8,
	selling_price::float8, profit_amount::float8, last_pricing_update, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.Category != "" {
		argCount++
		query += ` AND category = $` + strconv.Itoa(argCount)
		args = append(args, filter.Category)
	}
	if filter.Subcategory != "" {
		argCount++
		query += ` AND subcategory = $` + strconv.Itoa(argCount)
		args = append(args, filter.Subcategory)
	}
	if filter.Brand != "" {
		argCount++
		query += ` AND brand = $` + strconv.Itoa(argCount)
		args = append(args, filter.Brand)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+search+"%")
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	if filter.PricedOnly {
		query += ` AND selling_price > 0`
	}
	query += ` ORDER BY category, subcategory, name`

	return r.query(ctx, query, args...)
}

func (r *repository) ListWithForeignPrice(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE purchase_price_foreign > 0 ORDER BY id`)
}

func (r *repository) UpdatePricing(ctx context.Context, id int64, p Pricing) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET
			purchase_price_foreign = $2,
			exchange_rate = $3,
			purchase_price_local = $4,
			financing_interest_percent = $5,
			delivery_cost = $6,
			target_margin_percent = $7,
			selling_price = $8,
			profit_amount = $9,
			last_pricing_update = $10,
			updated_at = NOW()
		WHERE id = $1`,
		id, p.PurchasePriceForeign, p.ExchangeRate, p.PurchasePriceLocal,
		p.FinancingInterestPercent, p.DeliveryCost, p.TargetMarginPercent,
		p.SellingPrice, p.ProfitAmount, p.LastPricingUpdate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ApplyExchangeRate(ctx context.Context, id int64, u RateUpdate) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE products SET
			exchange_rate = $2,
			purchase_price_local = $3,
			profit_amount = $4,
			last_pricing_update = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, u.ExchangeRate, u.PurchasePriceLocal, u.ProfitAmount, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) query(ctx context.Context, query string, args ...interface{}) ([]Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Subcategory, &p.Brand, &p.IsActive,
		&p.Pricing.PurchasePriceForeign, &p.Pricing.ExchangeRate, &p.Pricing.PurchasePriceLocal,
		&p.Pricing.FinancingInterestPercent, &p.Pricing.DeliveryCost, &p.Pricing.TargetMarginPercent,
		&p.Pricing.SellingPrice, &p.Pricing.ProfitAmount, &p.Pricing.LastPricingUpdate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
