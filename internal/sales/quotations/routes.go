package quotations

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/reseller/internal/rbac"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermQuotesView))
		r.Get("/quotations", h.List)
		r.Get("/quotations/{id}", h.Show)
		r.Get("/quotations/number/{number}", h.ShowByNumber)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesCreate))
		r.Post("/quotations", h.Create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesStatus))
		r.Post("/quotations/{id}/status", h.SetStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermQuotesRender))
		r.Post("/quotations/{id}/document", h.Render)
		r.Get("/quotations/{id}/document", h.Download)
		r.Post("/quotations/{id}/send", h.Send)
	})
}
