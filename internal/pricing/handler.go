package pricing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/reseller/internal/platform/httpx"
	"github.com/odyssey-erp/reseller/internal/rbac"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// RefreshQueue schedules an exchange-rate refresh on the background worker.
type RefreshQueue interface {
	EnqueueExchangeRateRefresh(ctx context.Context, rate float64) (string, error)
}

type Handler struct {
	logger  *slog.Logger
	service *Service
	queue   RefreshQueue
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, queue RefreshQueue, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, queue: queue, rbac: rbac}
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.GetProductPricing(r.Context(), id)
	if err != nil {
		h.fail(w, "get product pricing failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) SetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SetPricingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SetProductPricing(r.Context(), id, req.toInput())
	if err != nil {
		h.fail(w, "set product pricing failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) RefreshExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req RefreshRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.queue != nil {
		taskID, err := h.queue.EnqueueExchangeRateRefresh(r.Context(), req.ExchangeRate)
		if err != nil {
			h.fail(w, "enqueue exchange rate refresh failed", shared.Processing("enqueue exchange rate refresh", err))
			return
		}
		httpx.OK(w, http.StatusAccepted, QueuedRefresh{TaskID: taskID, ExchangeRate: req.ExchangeRate})
		return
	}

	result, err := h.service.BulkRefreshExchangeRate(r.Context(), req.ExchangeRate)
	if err != nil {
		h.fail(w, "exchange rate refresh failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClassified(err) || errors.Is(err, shared.ErrProcessing) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf("invalid product id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}
