package quotations

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/reseller/internal/shared"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

var knownStatuses = map[Status]struct{}{
	StatusDraft:     {},
	StatusSent:      {},
	StatusAccepted:  {},
	StatusRejected:  {},
	StatusExpired:   {},
	StatusConverted: {},
}

// ParseStatus accepts any of the six lifecycle labels, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownStatuses[s]; !ok {
		return "", shared.Validationf("unknown quotation status %q", raw)
	}
	return s, nil
}

// Terminal reports whether the status ends the commercial flow. Terminal
// statuses are informational; transitions out of them are not blocked.
func (s Status) Terminal() bool {
	return s == StatusConverted || s == StatusRejected
}

type ItemKind string

const (
	ItemKindCatalog ItemKind = "catalog"
	ItemKindCustom  ItemKind = "custom"
)

// Snapshot is the frozen copy of an item's descriptive and price fields.
type Snapshot struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Price       float64 `json:"price"`
}

// LineItem is one immutable row of a quotation. Catalog items carry the
// product they were built from; custom items carry only their snapshot.
type LineItem struct {
	Position        int      `json:"position"`
	Kind            ItemKind `json:"kind"`
	ProductID       *int64   `json:"product_id,omitempty"`
	Snapshot        Snapshot `json:"snapshot"`
	Quantity        int      `json:"quantity"`
	UnitPrice       float64  `json:"unit_price"`
	DiscountPercent float64  `json:"discount_percent"`
	Subtotal        float64  `json:"subtotal"`
}

func newLineItem(kind ItemKind, productID *int64, snap Snapshot, quantity int, unitPrice, discountPercent float64) LineItem {
	return LineItem{
		Kind:            kind,
		ProductID:       productID,
		Snapshot:        snap,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
		Subtotal:        lineSubtotal(quantity, unitPrice, discountPercent),
	}
}

// NewCatalogItem builds a line item tied to a catalog product.
func NewCatalogItem(productID int64, snap Snapshot, quantity int, unitPrice, discountPercent float64) LineItem {
	id := productID
	return newLineItem(ItemKindCatalog, &id, snap, quantity, unitPrice, discountPercent)
}

// NewCustomItem builds a one-off line item described only by its snapshot.
func NewCustomItem(snap Snapshot, quantity int, unitPrice, discountPercent float64) LineItem {
	return newLineItem(ItemKindCustom, nil, snap, quantity, unitPrice, discountPercent)
}

type Quotation struct {
	ID                  uuid.UUID  `json:"id"`
	Number              string     `json:"number"`
	ClientID            int64      `json:"client_id"`
	Items               []LineItem `json:"items,omitempty"`
	Subtotal            float64    `json:"subtotal"`
	DiscountPercent     float64    `json:"discount_percent"`
	TaxPercent          float64    `json:"tax_percent"`
	FinalAmount         float64    `json:"final_amount"`
	Status              Status     `json:"status"`
	ValidUntil          time.Time  `json:"valid_until"`
	Notes               string     `json:"notes,omitempty"`
	PaymentTerms        string     `json:"payment_terms,omitempty"`
	DeliveryMethod      string     `json:"delivery_method,omitempty"`
	CreatedBy           int64      `json:"created_by"`
	RenderedDocumentRef *string    `json:"rendered_document_ref,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
