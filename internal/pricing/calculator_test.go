package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/shared"
)

var testDefaults = Defaults{
	ExchangeRate:             7300,
	FinancingInterestPercent: 15,
	DeliveryCost:             10000,
	TargetMarginPercent:      10,
}

func TestForwardDerivesSellingPriceFromMargin(t *testing.T) {
	calc := NewCalculator(testDefaults)

	b, err := calc.Forward(Input{
		PurchasePriceForeign:     100,
		ExchangeRate:             7000,
		FinancingInterestPercent: 15,
		DeliveryCost:             10000,
		TargetMarginPercent:      10,
	})
	require.NoError(t, err)

	assert.Equal(t, 700000.0, b.PurchasePriceLocal)
	assert.Equal(t, 105000.0, b.FinanceAmount)
	assert.Equal(t, 815000.0, b.TotalCost)
	assert.Equal(t, 905555.56, b.SellingPrice)
	assert.InDelta(t, 90555.56, b.ProfitAmount, 0.001)
	assert.Equal(t, 10.0, b.MarginPercent)
}

func TestForwardAppliesDefaults(t *testing.T) {
	calc := NewCalculator(testDefaults)

	b, err := calc.Forward(Input{PurchasePriceForeign: 10})
	require.NoError(t, err)

	assert.Equal(t, 7300.0, b.ExchangeRate)
	assert.Equal(t, 15.0, b.FinancingInterestPercent)
	assert.Equal(t, 10000.0, b.DeliveryCost)
	assert.Equal(t, 10.0, b.TargetMarginPercent)
	assert.Equal(t, 73000.0, b.PurchasePriceLocal)
	assert.Equal(t, 93950.0, b.TotalCost)
	assert.Equal(t, 104388.89, b.SellingPrice)
	assert.Equal(t, 10.0, b.MarginPercent)
}

func TestForwardExplicitSellingPrice(t *testing.T) {
	calc := NewCalculator(testDefaults)
	selling := 1000000.0

	b, err := calc.Forward(Input{
		PurchasePriceForeign:     100,
		ExchangeRate:             7000,
		FinancingInterestPercent: 15,
		DeliveryCost:             10000,
		TargetMarginPercent:      10,
		SellingPrice:             &selling,
	})
	require.NoError(t, err)

	assert.Equal(t, 1000000.0, b.SellingPrice)
	assert.Equal(t, 185000.0, b.ProfitAmount)
	assert.Equal(t, 18.5, b.MarginPercent)
}

func TestForwardRejectsInvalidInput(t *testing.T) {
	calc := NewCalculator(testDefaults)
	zero := 0.0

	cases := map[string]Input{
		"missing foreign price": {ExchangeRate: 7000},
		"margin of 100":         {PurchasePriceForeign: 100, TargetMarginPercent: 100},
		"margin above 100":      {PurchasePriceForeign: 100, TargetMarginPercent: 150},
		"zero selling price":    {PurchasePriceForeign: 100, SellingPrice: &zero},
		"interest above 100":    {PurchasePriceForeign: 100, FinancingInterestPercent: 120},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := calc.Forward(in)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestReadBack(t *testing.T) {
	calc := NewCalculator(testDefaults)

	b := calc.ReadBack(products.Pricing{
		PurchasePriceForeign:     100,
		ExchangeRate:             7000,
		FinancingInterestPercent: 15,
		DeliveryCost:             10000,
		TargetMarginPercent:      10,
		SellingPrice:             905555.56,
	})
	assert.Equal(t, 815000.0, b.TotalCost)
	assert.Equal(t, 10.0, b.MarginPercent)

	local := calc.ReadBack(products.Pricing{PurchasePriceLocal: 50000})
	assert.Equal(t, 50000.0, local.PurchasePriceLocal)
	assert.Equal(t, 7500.0, local.FinanceAmount)
	assert.Equal(t, 67500.0, local.TotalCost)
	assert.Equal(t, -67500.0, local.ProfitAmount)
	assert.Equal(t, 0.0, local.MarginPercent)
}

func TestRepriceForRate(t *testing.T) {
	local, profit := RepriceForRate(products.Pricing{
		PurchasePriceForeign:     100,
		FinancingInterestPercent: 15,
		DeliveryCost:             10000,
		SellingPrice:             905555.56,
	}, 7300)
	assert.Equal(t, 730000.0, local)
	assert.InDelta(t, 56055.56, profit, 0.001)

	local, profit = RepriceForRate(products.Pricing{PurchasePriceForeign: 10, SellingPrice: 100000}, 7000)
	assert.Equal(t, 70000.0, local)
	assert.Equal(t, 30000.0, profit)
}
