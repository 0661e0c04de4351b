package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/reseller/internal/sales/customers"
	"github.com/odyssey-erp/reseller/internal/sales/quotations"
	"github.com/odyssey-erp/reseller/web"
)

const quotationTemplate = "templates/documents/quotation.html"

// HTMLConverter turns an HTML page into a PDF.
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// QuotationRenderer lays a quotation out as HTML and converts it to PDF.
type QuotationRenderer struct {
	converter HTMLConverter
	tmpl      *template.Template
	lang      language.Tag
}

type quotationPage struct {
	Language       string
	Quotation      quotations.Quotation
	Customer       customers.Customer
	DiscountAmount float64
	TaxAmount      float64
}

// NewQuotationRenderer parses the embedded template; amounts are formatted
// for lang.
func NewQuotationRenderer(converter HTMLConverter, lang language.Tag) (*QuotationRenderer, error) {
	printer := message.NewPrinter(lang)
	funcs := template.FuncMap{
		"money": func(v float64) string {
			return printer.Sprintf("%.2f", v)
		},
		"percent": func(v float64) string {
			return decimal.NewFromFloat(v).String()
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 January 2006")
		},
	}
	tmpl, err := template.New("quotation.html").Funcs(funcs).ParseFS(web.Templates, quotationTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse quotation template: %w", err)
	}
	return &QuotationRenderer{converter: converter, tmpl: tmpl, lang: lang}, nil
}

// RenderQuotation implements quotations.Renderer.
func (r *QuotationRenderer) RenderQuotation(ctx context.Context, doc quotations.Document) ([]byte, error) {
	html, err := r.HTML(doc)
	if err != nil {
		return nil, err
	}
	return r.converter.RenderHTML(ctx, html)
}

// HTML renders the quotation page without converting it.
func (r *QuotationRenderer) HTML(doc quotations.Document) (string, error) {
	q := doc.Quotation
	subtotal := decimal.NewFromFloat(q.Subtotal)
	discount := subtotal.Mul(decimal.NewFromFloat(q.DiscountPercent)).Div(decimal.NewFromInt(100)).Round(2)
	tax := decimal.NewFromFloat(q.FinalAmount).Sub(subtotal.Sub(discount)).Round(2)

	page := quotationPage{
		Language:       r.lang.String(),
		Quotation:      q,
		Customer:       doc.Customer,
		DiscountAmount: discount.InexactFloat64(),
		TaxAmount:      tax.InexactFloat64(),
	}
	buf := &bytes.Buffer{}
	if err := r.tmpl.ExecuteTemplate(buf, "quotation.html", page); err != nil {
		return "", fmt.Errorf("render quotation template: %w", err)
	}
	return buf.String(), nil
}
