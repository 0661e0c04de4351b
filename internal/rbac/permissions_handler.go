package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/reseller/internal/platform/httpx"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// Directory lists what the permissions handler exposes.
type Directory interface {
	PermissionSource
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
}

// PermissionsHandler reports the caller's own roles and permissions.
type PermissionsHandler struct {
	logger  *slog.Logger
	service Directory
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service Directory) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me/permissions", h.myPermissions)
}

type myPermissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Roles       []Role   `json:"roles"`
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: no authenticated user", shared.ErrPermissionDenied))
		return
	}
	roles, err := h.service.UserRoles(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user roles", slog.Any("error", err))
		httpx.RespondError(w, shared.Processing("list user roles", err))
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list user permissions", slog.Any("error", err))
		httpx.RespondError(w, shared.Processing("list user permissions", err))
		return
	}
	httpx.OK(w, http.StatusOK, myPermissionsResponse{UserID: userID, Roles: roles, Permissions: perms})
}
