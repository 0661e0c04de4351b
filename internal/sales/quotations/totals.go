package quotations

import (
	sales "github.com/odyssey-erp/reseller/internal/sales/shared"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// Totals are the quote-level amounts derived from the line items.
type Totals struct {
	Subtotal    float64
	FinalAmount float64
}

// ComputeTotals sums item subtotals and applies the quote-level discount and
// tax. Caller-supplied subtotals are never trusted.
func ComputeTotals(items []LineItem, discountPercent, taxPercent float64) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, shared.Validationf("a quotation needs at least one item")
	}
	if !sales.ValidPercent(discountPercent) {
		return Totals{}, shared.Validationf("discount_percent must be between 0 and 100")
	}
	if !sales.ValidPercent(taxPercent) {
		return Totals{}, shared.Validationf("tax_percent must be between 0 and 100")
	}
	amounts := make([]float64, len(items))
	for i, item := range items {
		amounts[i] = item.Subtotal
	}
	subtotal := sales.SumAmounts(amounts...)
	return Totals{
		Subtotal:    subtotal,
		FinalAmount: sales.CalculateFinalAmount(subtotal, discountPercent, taxPercent),
	}, nil
}

func lineSubtotal(quantity int, unitPrice, discountPercent float64) float64 {
	return sales.CalculateLineSubtotal(quantity, unitPrice, discountPercent)
}
