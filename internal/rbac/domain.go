package rbac

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Permission names guarding the HTTP surface.
const (
	PermQuotesView   = "quotes.view"
	PermQuotesCreate = "quotes.create"
	PermQuotesStatus = "quotes.status"
	PermQuotesRender = "quotes.render"
	PermPricingView  = "pricing.view"
	PermPricingEdit  = "pricing.edit"
	PermReportsView  = "reports.view"
)
