package pricing

// SetPricingRequest is the body of a pricing edit.
type SetPricingRequest struct {
	PurchasePriceForeign     float64  `json:"purchase_price_foreign" validate:"gt=0"`
	ExchangeRate             float64  `json:"exchange_rate" validate:"gte=0"`
	FinancingInterestPercent float64  `json:"financing_interest_percent" validate:"gte=0,lte=100"`
	DeliveryCost             float64  `json:"delivery_cost" validate:"gte=0"`
	TargetMarginPercent      float64  `json:"target_margin_percent" validate:"gte=0,lt=100"`
	SellingPrice             *float64 `json:"selling_price,omitempty" validate:"omitempty,gt=0"`
}

func (r SetPricingRequest) toInput() Input {
	return Input{
		PurchasePriceForeign:     r.PurchasePriceForeign,
		ExchangeRate:             r.ExchangeRate,
		FinancingInterestPercent: r.FinancingInterestPercent,
		DeliveryCost:             r.DeliveryCost,
		TargetMarginPercent:      r.TargetMarginPercent,
		SellingPrice:             r.SellingPrice,
	}
}

// RefreshRateRequest is the body of a bulk exchange-rate refresh.
type RefreshRateRequest struct {
	ExchangeRate float64 `json:"exchange_rate" validate:"gt=0"`
}

// QueuedRefresh is returned when the refresh runs in the background.
type QueuedRefresh struct {
	TaskID       string  `json:"task_id"`
	ExchangeRate float64 `json:"exchange_rate"`
}
