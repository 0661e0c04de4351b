package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/shared"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Defaults replace zero or missing inputs on the forward and read-back paths.
type Defaults struct {
	ExchangeRate             float64
	FinancingInterestPercent float64
	DeliveryCost             float64
	TargetMarginPercent      float64
}

// Input carries the operator-supplied pricing fields of one product.
type Input struct {
	PurchasePriceForeign     float64
	ExchangeRate             float64
	FinancingInterestPercent float64
	DeliveryCost             float64
	TargetMarginPercent      float64
	// SellingPrice, when set, is stored as-is instead of being derived
	// from the target margin.
	SellingPrice *float64
}

// Breakdown is the financial summary of a product's pricing.
type Breakdown struct {
	PurchasePriceForeign     float64 `json:"purchase_price_foreign"`
	ExchangeRate             float64 `json:"exchange_rate"`
	PurchasePriceLocal       float64 `json:"purchase_price_local"`
	FinancingInterestPercent float64 `json:"financing_interest_percent"`
	FinanceAmount            float64 `json:"finance_amount"`
	DeliveryCost             float64 `json:"delivery_cost"`
	TotalCost                float64 `json:"total_cost"`
	TargetMarginPercent      float64 `json:"target_margin_percent"`
	SellingPrice             float64 `json:"selling_price"`
	ProfitAmount             float64 `json:"profit_amount"`
	MarginPercent            float64 `json:"margin_percent"`
}

// Calculator derives selling prices and margins from cost inputs.
type Calculator struct {
	defaults Defaults
}

func NewCalculator(defaults Defaults) Calculator {
	return Calculator{defaults: defaults}
}

func (c Calculator) Defaults() Defaults {
	return c.defaults
}

// Forward computes cost, selling price and margin for a pricing edit.
func (c Calculator) Forward(in Input) (Breakdown, error) {
	if in.PurchasePriceForeign <= 0 {
		return Breakdown{}, shared.Validationf("purchase_price_foreign must be greater than 0")
	}
	rate := orDefault(in.ExchangeRate, c.defaults.ExchangeRate)
	interest := orDefault(in.FinancingInterestPercent, c.defaults.FinancingInterestPercent)
	delivery := orDefault(in.DeliveryCost, c.defaults.DeliveryCost)
	margin := orDefault(in.TargetMarginPercent, c.defaults.TargetMarginPercent)

	if interest > 100 {
		return Breakdown{}, shared.Validationf("financing_interest_percent must be between 0 and 100")
	}
	if margin >= 100 {
		return Breakdown{}, shared.Validationf("target_margin_percent must be below 100")
	}

	local, finance, total := costs(decimal.NewFromFloat(in.PurchasePriceForeign), rate, interest, delivery)

	var selling decimal.Decimal
	if in.SellingPrice != nil {
		if *in.SellingPrice <= 0 {
			return Breakdown{}, shared.Validationf("selling_price must be greater than 0")
		}
		selling = decimal.NewFromFloat(*in.SellingPrice).Round(moneyPlaces)
	} else {
		divisor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(margin).Div(hundred))
		selling = total.Div(divisor).Round(moneyPlaces)
		if !selling.IsPositive() {
			return Breakdown{}, shared.Validationf("derived selling_price must be greater than 0")
		}
	}

	return summarize(in.PurchasePriceForeign, rate, interest, delivery, margin, local, finance, total, selling), nil
}

// ReadBack recomputes the summary of a stored product without changing it.
// The forward defaults apply to zero fields; products without a foreign
// purchase price are costed from their stored local price.
func (c Calculator) ReadBack(p products.Pricing) Breakdown {
	rate := orDefault(p.ExchangeRate, c.defaults.ExchangeRate)
	interest := orDefault(p.FinancingInterestPercent, c.defaults.FinancingInterestPercent)
	delivery := orDefault(p.DeliveryCost, c.defaults.DeliveryCost)
	margin := orDefault(p.TargetMarginPercent, c.defaults.TargetMarginPercent)

	var local, finance, total decimal.Decimal
	if p.PurchasePriceForeign > 0 {
		local, finance, total = costs(decimal.NewFromFloat(p.PurchasePriceForeign), rate, interest, delivery)
	} else {
		local = decimal.NewFromFloat(p.PurchasePriceLocal).Round(moneyPlaces)
		finance = local.Mul(decimal.NewFromFloat(interest)).Div(hundred).Round(moneyPlaces)
		total = local.Add(finance).Add(decimal.NewFromFloat(delivery)).Round(moneyPlaces)
	}
	selling := decimal.NewFromFloat(p.SellingPrice).Round(moneyPlaces)
	return summarize(p.PurchasePriceForeign, rate, interest, delivery, margin, local, finance, total, selling)
}

// RepriceForRate moves cost and profit of a stored product to a new exchange
// rate. Missing interest and delivery count as zero and the selling price is
// kept.
func RepriceForRate(p products.Pricing, rate float64) (local, profit float64) {
	l, _, total := costs(decimal.NewFromFloat(p.PurchasePriceForeign), rate, p.FinancingInterestPercent, p.DeliveryCost)
	pr := decimal.NewFromFloat(p.SellingPrice).Sub(total).Round(moneyPlaces)
	return l.InexactFloat64(), pr.InexactFloat64()
}

// ToPricing converts a forward breakdown into the stored product fields.
func (b Breakdown) ToPricing() products.Pricing {
	return products.Pricing{
		PurchasePriceForeign:     b.PurchasePriceForeign,
		ExchangeRate:             b.ExchangeRate,
		PurchasePriceLocal:       b.PurchasePriceLocal,
		FinancingInterestPercent: b.FinancingInterestPercent,
		DeliveryCost:             b.DeliveryCost,
		TargetMarginPercent:      b.TargetMarginPercent,
		SellingPrice:             b.SellingPrice,
		ProfitAmount:             b.ProfitAmount,
	}
}

func costs(foreign decimal.Decimal, rate, interest, delivery float64) (local, finance, total decimal.Decimal) {
	local = foreign.Mul(decimal.NewFromFloat(rate)).Round(moneyPlaces)
	finance = local.Mul(decimal.NewFromFloat(interest)).Div(hundred).Round(moneyPlaces)
	total = local.Add(finance).Add(decimal.NewFromFloat(delivery)).Round(moneyPlaces)
	return local, finance, total
}

func summarize(foreign, rate, interest, delivery, margin float64, local, finance, total, selling decimal.Decimal) Breakdown {
	profit := selling.Sub(total)
	realized := decimal.Zero
	if !selling.IsZero() {
		realized = profit.Div(selling).Mul(hundred).Round(moneyPlaces)
	}
	return Breakdown{
		PurchasePriceForeign:     foreign,
		ExchangeRate:             rate,
		PurchasePriceLocal:       local.InexactFloat64(),
		FinancingInterestPercent: interest,
		FinanceAmount:            finance.InexactFloat64(),
		DeliveryCost:             delivery,
		TotalCost:                total.InexactFloat64(),
		TargetMarginPercent:      margin,
		SellingPrice:             selling.InexactFloat64(),
		ProfitAmount:             profit.InexactFloat64(),
		MarginPercent:            realized.InexactFloat64(),
	}
}

func orDefault(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}
