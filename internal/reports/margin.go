package reports

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/reseller/internal/shared"
)

// Sort fields accepted by the margin report.
const (
	SortMargin  = "margin"
	SortProfit  = "profit"
	SortRevenue = "revenue"
	SortCost    = "cost"
	SortName    = "name"
)

// MaxMarginLimit bounds the number of products a margin report returns.
const MaxMarginLimit = 1000

// MarginFilter selects and orders the products of a margin report.
type MarginFilter struct {
	Category    string
	Subcategory string
	Brand       string
	Search      string
	SortField   string
	SortDir     string
	Limit       int
}

// Normalize applies defaults and rejects unknown sort options.
func (f MarginFilter) Normalize() (MarginFilter, error) {
	f.SortField = strings.ToLower(strings.TrimSpace(f.SortField))
	f.SortDir = strings.ToLower(strings.TrimSpace(f.SortDir))
	if f.SortField == "" {
		f.SortField = SortMargin
	}
	switch f.SortField {
	case SortMargin, SortProfit, SortRevenue, SortCost, SortName:
	default:
		return f, shared.Validationf("unknown sort field %q", f.SortField)
	}
	if f.SortDir == "" {
		f.SortDir = "desc"
	}
	if f.SortDir != "asc" && f.SortDir != "desc" {
		return f, shared.Validationf("sort direction must be asc or desc")
	}
	if f.Limit < 0 {
		return f, shared.Validationf("limit must not be negative")
	}
	if f.Limit > MaxMarginLimit {
		f.Limit = MaxMarginLimit
	}
	return f, nil
}

// MarginReport lists product figures together with the summary of the whole
// filtered set.
type MarginReport struct {
	Products []ProductFigures `json:"products"`
	Summary  Summary          `json:"summary"`
}

// BuildMarginReport sorts and trims figures. The summary always covers every
// figure, not only the returned page.
func BuildMarginReport(figs []ProductFigures, f MarginFilter) MarginReport {
	summary := Summarize(figs)

	sorted := make([]ProductFigures, len(figs))
	copy(sorted, figs)
	less := sortKey(f.SortField)
	sort.SliceStable(sorted, func(i, j int) bool {
		if f.SortDir == "asc" {
			return less(sorted[i], sorted[j])
		}
		return less(sorted[j], sorted[i])
	})
	if f.Limit > 0 && len(sorted) > f.Limit {
		sorted = sorted[:f.Limit]
	}
	return MarginReport{Products: sorted, Summary: summary}
}

func sortKey(field string) func(a, b ProductFigures) bool {
	switch field {
	case SortProfit:
		return func(a, b ProductFigures) bool { return a.ProfitAmount < b.ProfitAmount }
	case SortRevenue:
		return func(a, b ProductFigures) bool { return a.SellingPrice < b.SellingPrice }
	case SortCost:
		return func(a, b ProductFigures) bool { return a.TotalCost < b.TotalCost }
	case SortName:
		return func(a, b ProductFigures) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		return func(a, b ProductFigures) bool { return a.MarginPercent < b.MarginPercent }
	}
}
