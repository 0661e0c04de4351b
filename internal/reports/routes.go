package reports

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/reseller/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReportsView))
		r.Get("/reports/margins", h.Margins)
		r.Get("/reports/profitability", h.ProfitabilityReport)
	})
}
