package pricing

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/reseller/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermPricingView, rbac.PermPricingEdit))
		r.Get("/pricing/products/{id}", h.GetProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermPricingEdit))
		r.Put("/pricing/products/{id}", h.SetProduct)
		r.Post("/pricing/exchange-rate", h.RefreshExchangeRate)
	})
}
