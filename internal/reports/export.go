package reports

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
)

const (
	marginSheet  = "Margins"
	summarySheet = "Summary"
)

var marginHeaders = []string{
	"SKU", "Name", "Category", "Subcategory", "Brand", "Exchange Rate",
	"Purchase (Local)", "Finance", "Delivery", "Total Cost", "Selling Price", "Profit", "Margin %",
}

// WriteMarginWorkbook encodes a margin report as an xlsx workbook with a
// product sheet and a summary sheet.
func WriteMarginWorkbook(w io.Writer, report MarginReport) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", marginSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := writeRow(f, marginSheet, 1, toRow(marginHeaders)); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(marginHeaders), 1)
	if err := f.SetCellStyle(marginSheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, p := range report.Products {
		row := []any{
			p.SKU, p.Name, p.Category, p.Subcategory, p.Brand, p.ExchangeRate,
			p.PurchasePriceLocal, p.FinanceAmount, p.DeliveryCost, p.TotalCost, p.SellingPrice, p.ProfitAmount, p.MarginPercent,
		}
		if err := writeRow(f, marginSheet, i+2, row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(marginHeaders))
	if err := f.SetColWidth(marginSheet, "A", lastCol, 16); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	s := report.Summary
	rows := [][]any{
		{"Metric", "Value"},
		{"Products", s.ProductCount},
		{"Total Revenue", s.TotalRevenue},
		{"Total Cost", s.TotalCost},
		{"Total Profit", s.TotalProfit},
		{"Average Margin %", s.AverageMargin},
		{"Highest Margin %", s.HighestMargin.MarginPercent},
		{"Lowest Margin %", s.LowestMargin.MarginPercent},
		{"Average Exchange Rate", s.AverageExchangeRate},
	}
	categories := make([]string, 0, len(s.MarginByCategory))
	for c := range s.MarginByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		rows = append(rows, []any{"Margin % (" + c + ")", s.MarginByCategory[c]})
	}
	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 28); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
