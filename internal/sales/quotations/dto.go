package quotations

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/reseller/internal/shared"
)

// Number is a leniently decoded numeric field. It accepts JSON numbers and
// numeric strings; null, empty, malformed and non-finite values decode as
// unset.
type Number struct {
	Value float64
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number{Value: v, Set: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Num is a convenience constructor for a set Number.
func Num(v float64) Number {
	return Number{Value: v, Set: true}
}

type SnapshotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Brand       string `json:"brand"`
	Price       Number `json:"price"`
}

// ItemRequest describes one requested line. ProductID selects the catalog
// path; otherwise Snapshot describes a custom item.
type ItemRequest struct {
	ProductID       *int64           `json:"product_id,omitempty"`
	Snapshot        *SnapshotRequest `json:"snapshot,omitempty"`
	Quantity        Number           `json:"quantity"`
	UnitPrice       Number           `json:"unit_price"`
	DiscountPercent Number           `json:"discount_percent"`
}

type CreateQuotationRequest struct {
	ClientID        int64         `json:"client_id" validate:"required,gt=0"`
	Items           []ItemRequest `json:"items" validate:"required,min=1"`
	DiscountPercent Number        `json:"discount_percent"`
	TaxPercent      Number        `json:"tax_percent"`
	Notes           string        `json:"notes"`
	ValidUntil      *time.Time    `json:"valid_until,omitempty"`
	PaymentTerms    string        `json:"payment_terms"`
	DeliveryMethod  string        `json:"delivery_method"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type SendDocumentRequest struct {
	Recipient string `json:"recipient" validate:"omitempty,email"`
}

// List sort fields mapped to their columns.
var sortColumns = map[string]string{
	"created_at":   "q.created_at",
	"number":       "q.number",
	"final_amount": "q.final_amount",
	"valid_until":  "q.valid_until",
	"status":       "q.status",
}

const maxPageSize = 100

type ListQuotationsRequest struct {
	ClientID  *int64
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time
	MinAmount *float64
	MaxAmount *float64
	Page      int
	PageSize  int
	SortField string
	SortDir   string
}

// Normalize applies paging and ordering defaults and validates the ranges.
func (r ListQuotationsRequest) Normalize() (ListQuotationsRequest, error) {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = shared.DefaultPageSize
	}
	if r.PageSize > maxPageSize {
		r.PageSize = maxPageSize
	}
	r.SortField = strings.ToLower(strings.TrimSpace(r.SortField))
	if r.SortField == "" {
		r.SortField = "created_at"
	}
	if _, ok := sortColumns[r.SortField]; !ok {
		return r, shared.Validationf("unknown sort field %q", r.SortField)
	}
	r.SortDir = strings.ToLower(strings.TrimSpace(r.SortDir))
	if r.SortDir == "" {
		r.SortDir = "desc"
	}
	if r.SortDir != "asc" && r.SortDir != "desc" {
		return r, shared.Validationf("sort direction must be asc or desc")
	}
	if r.DateFrom != nil && r.DateTo != nil && r.DateTo.Before(*r.DateFrom) {
		return r, shared.Validationf("date_to must not be before date_from")
	}
	if r.MinAmount != nil && r.MaxAmount != nil && *r.MaxAmount < *r.MinAmount {
		return r, shared.Validationf("max_amount must not be below min_amount")
	}
	return r, nil
}

func (r ListQuotationsRequest) offset() int {
	return shared.NewPagination(r.Page, r.PageSize, 0).Offset()
}

type ListResult struct {
	Quotations []Quotation `json:"quotations"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	Pages      int         `json:"pages"`
}

// DocumentResult points at the rendered document of a quotation.
type DocumentResult struct {
	Ref    string `json:"document_ref"`
	Reused bool   `json:"reused"`
}
