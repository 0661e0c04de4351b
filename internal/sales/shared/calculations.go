package shared

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the number of decimal places kept on stored amounts.
const MoneyPlaces = 2

// CalculateLineSubtotal returns quantity * unitPrice * (1 - discountPercent/100),
// rounded half away from zero to MoneyPlaces.
func CalculateLineSubtotal(quantity int, unitPrice, discountPercent float64) float64 {
	gross := decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(unitPrice))
	net := gross.Mul(complement(discountPercent))
	return net.Round(MoneyPlaces).InexactFloat64()
}

// CalculateFinalAmount returns subtotal * (1 - discountPercent/100) * (1 + taxPercent/100).
func CalculateFinalAmount(subtotal, discountPercent, taxPercent float64) float64 {
	net := decimal.NewFromFloat(subtotal).Mul(complement(discountPercent))
	gross := net.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(taxPercent).Div(hundred)))
	return gross.Round(MoneyPlaces).InexactFloat64()
}

// SumAmounts adds amounts without accumulating binary floating error.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(MoneyPlaces).InexactFloat64()
}

// ValidPercent reports whether p lies in the closed range [0, 100].
func ValidPercent(p float64) bool {
	return p >= 0 && p <= 100
}

func complement(percent float64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromFloat(percent).Div(hundred))
}
