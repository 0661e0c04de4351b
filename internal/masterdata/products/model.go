package products

import (
	"time"
)

// Product represents a catalog product with its pricing fields.
type Product struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Brand       string    `json:"brand"`
	IsActive    bool      `json:"is_active"`
	Pricing     Pricing   `json:"pricing"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pricing holds the cost and margin fields maintained by the pricing calculator.
// Percentages use the 0-100 convention, amounts are local currency units.
type Pricing struct {
	PurchasePriceForeign     float64    `json:"purchase_price_foreign"`
	ExchangeRate             float64    `json:"exchange_rate"`
	PurchasePriceLocal       float64    `json:"purchase_price_local"`
	FinancingInterestPercent float64    `json:"financing_interest_percent"`
	DeliveryCost             float64    `json:"delivery_cost"`
	TargetMarginPercent      float64    `json:"target_margin_percent"`
	SellingPrice             float64    `json:"selling_price"`
	ProfitAmount             float64    `json:"profit_amount"`
	LastPricingUpdate        *time.Time `json:"last_pricing_update,omitempty"`
}

// RateUpdate is the subset of pricing fields moved by an exchange-rate refresh.
type RateUpdate struct {
	ExchangeRate       float64
	PurchasePriceLocal float64
	ProfitAmount       float64
	UpdatedAt          time.Time
}

// ListFilter narrows catalog reads used by reporting.
type ListFilter struct {
	Category    string
	Subcategory string
	Brand       string
	Search      string
	ActiveOnly  bool
	PricedOnly  bool
}
