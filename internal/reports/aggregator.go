package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
)

const places = 2

var hundred = decimal.NewFromInt(100)

// ProductFigures are the per-product numbers every report is built from.
type ProductFigures struct {
	ProductID          int64   `json:"product_id"`
	SKU                string  `json:"sku"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	Subcategory        string  `json:"subcategory"`
	Brand              string  `json:"brand"`
	ExchangeRate       float64 `json:"exchange_rate"`
	PurchasePriceLocal float64 `json:"purchase_price_local"`
	FinanceAmount      float64 `json:"finance_amount"`
	DeliveryCost       float64 `json:"delivery_cost"`
	TotalCost          float64 `json:"total_cost"`
	SellingPrice       float64 `json:"selling_price"`
	ProfitAmount       float64 `json:"profit_amount"`
	MarginPercent      float64 `json:"margin_percent"`
}

// ProductRef identifies the product behind an extreme margin.
type ProductRef struct {
	ID   int64  `json:"id"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// MarginExtreme is a highest or lowest margin. Product is nil when no
// product has a positive margin.
type MarginExtreme struct {
	MarginPercent float64     `json:"margin_percent"`
	Product       *ProductRef `json:"product"`
}

// Summary is the flat roll-up of a product set.
type Summary struct {
	ProductCount        int                `json:"product_count"`
	TotalRevenue        float64            `json:"total_revenue"`
	TotalCost           float64            `json:"total_cost"`
	TotalProfit         float64            `json:"total_profit"`
	AverageMargin       float64            `json:"average_margin"`
	HighestMargin       MarginExtreme      `json:"highest_margin"`
	LowestMargin        MarginExtreme      `json:"lowest_margin"`
	AverageExchangeRate float64            `json:"average_exchange_rate"`
	MarginByCategory    map[string]float64 `json:"margin_by_category"`
}

// GroupSummary carries the totals of one category, subcategory or brand.
type GroupSummary struct {
	Category            string  `json:"category,omitempty"`
	Subcategory         string  `json:"subcategory,omitempty"`
	Brand               string  `json:"brand,omitempty"`
	ProductCount        int     `json:"product_count"`
	RatedCount          int     `json:"rated_count"`
	TotalRevenue        float64 `json:"total_revenue"`
	TotalCost           float64 `json:"total_cost"`
	TotalProfit         float64 `json:"total_profit"`
	AverageMargin       float64 `json:"average_margin"`
	AverageExchangeRate float64 `json:"average_exchange_rate"`
	ProfitPercentage    float64 `json:"profit_percentage"`
}

// Profitability is the grouped report over the whole catalog.
type Profitability struct {
	Overall       GroupSummary   `json:"overall"`
	ByCategory    []GroupSummary `json:"by_category"`
	BySubcategory []GroupSummary `json:"by_subcategory"`
	ByBrand       []GroupSummary `json:"by_brand"`
}

// Figures derives the report numbers of one product. Total cost uses the
// stored fields as they are, without pricing defaults.
func Figures(p products.Product) ProductFigures {
	pr := p.Pricing
	local := decimal.NewFromFloat(pr.PurchasePriceLocal)
	finance := local.Mul(decimal.NewFromFloat(pr.FinancingInterestPercent)).Div(hundred)
	total := local.Add(finance).Add(decimal.NewFromFloat(pr.DeliveryCost))
	selling := decimal.NewFromFloat(pr.SellingPrice)
	profit := decimal.NewFromFloat(pr.ProfitAmount)

	return ProductFigures{
		ProductID:          p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		Category:           p.Category,
		Subcategory:        p.Subcategory,
		Brand:              p.Brand,
		ExchangeRate:       pr.ExchangeRate,
		PurchasePriceLocal: pr.PurchasePriceLocal,
		FinanceAmount:      finance.Round(places).InexactFloat64(),
		DeliveryCost:       pr.DeliveryCost,
		TotalCost:          total.Round(places).InexactFloat64(),
		SellingPrice:       pr.SellingPrice,
		ProfitAmount:       pr.ProfitAmount,
		MarginPercent:      percentOf(profit, selling).InexactFloat64(),
	}
}

// FiguresOf maps Figures over a product set.
func FiguresOf(items []products.Product) []ProductFigures {
	out := make([]ProductFigures, 0, len(items))
	for _, p := range items {
		out = append(out, Figures(p))
	}
	return out
}

// Summarize computes the flat summary of a figure set.
func Summarize(figs []ProductFigures) Summary {
	s := Summary{ProductCount: len(figs), MarginByCategory: map[string]float64{}}
	if len(figs) == 0 {
		return s
	}

	var revenue, cost, profit, marginSum, rateSum decimal.Decimal
	rated := 0
	var highest, lowest *ProductFigures
	type acc struct {
		sum   decimal.Decimal
		count int64
	}
	byCategory := map[string]*acc{}

	for i := range figs {
		f := &figs[i]
		revenue = revenue.Add(decimal.NewFromFloat(f.SellingPrice))
		cost = cost.Add(decimal.NewFromFloat(f.TotalCost))
		profit = profit.Add(decimal.NewFromFloat(f.ProfitAmount))
		margin := decimal.NewFromFloat(f.MarginPercent)
		marginSum = marginSum.Add(margin)
		if f.ExchangeRate > 0 {
			rateSum = rateSum.Add(decimal.NewFromFloat(f.ExchangeRate))
			rated++
		}
		if f.MarginPercent > 0 {
			if highest == nil || f.MarginPercent > highest.MarginPercent {
				highest = f
			}
			if lowest == nil || f.MarginPercent < lowest.MarginPercent {
				lowest = f
			}
		}
		a, ok := byCategory[f.Category]
		if !ok {
			a = &acc{}
			byCategory[f.Category] = a
		}
		a.sum = a.sum.Add(margin)
		a.count++
	}

	s.TotalRevenue = revenue.Round(places).InexactFloat64()
	s.TotalCost = cost.Round(places).InexactFloat64()
	s.TotalProfit = profit.Round(places).InexactFloat64()
	s.AverageMargin = marginSum.Div(decimal.NewFromInt(int64(len(figs)))).Round(places).InexactFloat64()
	if rated > 0 {
		s.AverageExchangeRate = rateSum.Div(decimal.NewFromInt(int64(rated))).Round(places).InexactFloat64()
	}
	s.HighestMargin = extreme(highest)
	s.LowestMargin = extreme(lowest)
	for category, a := range byCategory {
		s.MarginByCategory[category] = a.sum.Div(decimal.NewFromInt(a.count)).Round(places).InexactFloat64()
	}
	return s
}

// GroupBy folds figures into one summary per key, ordered by key.
func GroupBy(figs []ProductFigures, key func(ProductFigures) GroupSummary) []GroupSummary {
	type groupAcc struct {
		head    GroupSummary
		revenue decimal.Decimal
		cost    decimal.Decimal
		profit  decimal.Decimal
		margin  decimal.Decimal
		rateSum decimal.Decimal
		count   int
		rated   int
	}
	groups := map[GroupSummary]*groupAcc{}
	for _, f := range figs {
		k := key(f)
		g, ok := groups[k]
		if !ok {
			g = &groupAcc{head: k}
			groups[k] = g
		}
		g.count++
		g.revenue = g.revenue.Add(decimal.NewFromFloat(f.SellingPrice))
		g.cost = g.cost.Add(decimal.NewFromFloat(f.TotalCost))
		g.profit = g.profit.Add(decimal.NewFromFloat(f.ProfitAmount))
		g.margin = g.margin.Add(decimal.NewFromFloat(f.MarginPercent))
		if f.ExchangeRate > 0 {
			g.rateSum = g.rateSum.Add(decimal.NewFromFloat(f.ExchangeRate))
			g.rated++
		}
	}

	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		s := g.head
		s.ProductCount = g.count
		s.RatedCount = g.rated
		s.TotalRevenue = g.revenue.Round(places).InexactFloat64()
		s.TotalCost = g.cost.Round(places).InexactFloat64()
		s.TotalProfit = g.profit.Round(places).InexactFloat64()
		s.AverageMargin = g.margin.Div(decimal.NewFromInt(int64(g.count))).Round(places).InexactFloat64()
		if g.rated > 0 {
			s.AverageExchangeRate = g.rateSum.Div(decimal.NewFromInt(int64(g.rated))).Round(places).InexactFloat64()
		}
		s.ProfitPercentage = percentOf(g.profit, g.revenue).InexactFloat64()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Subcategory != out[j].Subcategory {
			return out[i].Subcategory < out[j].Subcategory
		}
		return out[i].Brand < out[j].Brand
	})
	return out
}

func byCategory(f ProductFigures) GroupSummary {
	return GroupSummary{Category: f.Category}
}

func bySubcategory(f ProductFigures) GroupSummary {
	return GroupSummary{Category: f.Category, Subcategory: f.Subcategory}
}

func byBrand(f ProductFigures) GroupSummary {
	return GroupSummary{Brand: f.Brand}
}

// BuildProfitability groups figures by category, subcategory and brand and
// folds the category totals into the overall summary.
func BuildProfitability(figs []ProductFigures) Profitability {
	report := Profitability{
		ByCategory:    GroupBy(figs, byCategory),
		BySubcategory: GroupBy(figs, bySubcategory),
		ByBrand:       GroupBy(figs, byBrand),
	}
	report.Overall = Fold(report.ByCategory)
	return report
}

// Fold combines group totals. Averages are weighted by each group's
// product count, exchange rates by each group's rated count.
func Fold(groups []GroupSummary) GroupSummary {
	var revenue, cost, profit, marginWeighted, rateWeighted decimal.Decimal
	var count, rated int
	for _, g := range groups {
		revenue = revenue.Add(decimal.NewFromFloat(g.TotalRevenue))
		cost = cost.Add(decimal.NewFromFloat(g.TotalCost))
		profit = profit.Add(decimal.NewFromFloat(g.TotalProfit))
		marginWeighted = marginWeighted.Add(decimal.NewFromFloat(g.AverageMargin).Mul(decimal.NewFromInt(int64(g.ProductCount))))
		rateWeighted = rateWeighted.Add(decimal.NewFromFloat(g.AverageExchangeRate).Mul(decimal.NewFromInt(int64(g.RatedCount))))
		count += g.ProductCount
		rated += g.RatedCount
	}
	overall := GroupSummary{
		ProductCount:     count,
		RatedCount:       rated,
		TotalRevenue:     revenue.Round(places).InexactFloat64(),
		TotalCost:        cost.Round(places).InexactFloat64(),
		TotalProfit:      profit.Round(places).InexactFloat64(),
		ProfitPercentage: percentOf(profit, revenue).InexactFloat64(),
	}
	if count > 0 {
		overall.AverageMargin = marginWeighted.Div(decimal.NewFromInt(int64(count))).Round(places).InexactFloat64()
	}
	if rated > 0 {
		overall.AverageExchangeRate = rateWeighted.Div(decimal.NewFromInt(int64(rated))).Round(places).InexactFloat64()
	}
	return overall
}

func extreme(f *ProductFigures) MarginExtreme {
	if f == nil {
		return MarginExtreme{}
	}
	return MarginExtreme{
		MarginPercent: f.MarginPercent,
		Product:       &ProductRef{ID: f.ProductID, SKU: f.SKU, Name: f.Name},
	}
}

// percentOf returns part/whole*100 rounded, or zero when whole is zero.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(places)
}
