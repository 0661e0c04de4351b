package quotations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/reseller/internal/platform/httpx"
	"github.com/odyssey-erp/reseller/internal/rbac"
	"github.com/odyssey-erp/reseller/internal/shared"
)

// DeliveryQueue schedules quotation emails on the background worker.
type DeliveryQueue interface {
	EnqueueSendQuotation(ctx context.Context, id uuid.UUID, recipient string) (string, error)
}

type QueuedDelivery struct {
	TaskID    string `json:"task_id"`
	Recipient string `json:"recipient"`
}

type Handler struct {
	logger  *slog.Logger
	service *Service
	queue   DeliveryQueue
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, queue DeliveryQueue, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, queue: queue, rbac: rbac}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrPermissionDenied)
		return
	}
	var req CreateQuotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), req, actor)
	if err != nil {
		h.fail(w, "create quotation failed", err)
		return
	}
	httpx.OK(w, http.StatusCreated, q)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := listRequestFromQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list quotations failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get quotation failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) ShowByNumber(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, "get quotation by number failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, "set quotation status failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.RenderDocument(r.Context(), id)
	if err != nil {
		h.fail(w, "render quotation failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, doc)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data, name, err := h.service.DownloadDocument(r.Context(), id)
	if err != nil {
		h.fail(w, "download quotation failed", err)
		return
	}
	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	id, err := quotationID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SendDocumentRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := shared.ValidateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipient, err := h.service.ResolveRecipient(r.Context(), id, req.Recipient)
	if err != nil {
		h.fail(w, "resolve quotation recipient failed", err)
		return
	}
	if h.queue == nil {
		h.fail(w, "send quotation failed", shared.Processing("send quotation", errors.New("delivery queue is not configured")))
		return
	}
	taskID, err := h.queue.EnqueueSendQuotation(r.Context(), id, recipient)
	if err != nil {
		h.fail(w, "enqueue quotation delivery failed", shared.Processing("enqueue quotation delivery", err))
		return
	}
	httpx.OK(w, http.StatusAccepted, QueuedDelivery{TaskID: taskID, Recipient: recipient})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClassified(err) || errors.Is(err, shared.ErrProcessing) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func quotationID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.Validationf("invalid quotation id %q", raw)
	}
	return id, nil
}

func listRequestFromQuery(r *http.Request) (ListQuotationsRequest, error) {
	q := r.URL.Query()
	req := ListQuotationsRequest{
		SortField: q.Get("sort"),
		SortDir:   q.Get("dir"),
	}
	var err error
	if req.Page, err = optionalInt(q.Get("page"), "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = optionalInt(q.Get("page_size"), "page_size"); err != nil {
		return req, err
	}
	if v := strings.TrimSpace(q.Get("client_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return req, shared.Validationf("invalid client_id %q", v)
		}
		req.ClientID = &id
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := ParseStatus(v)
		if err != nil {
			return req, err
		}
		req.Status = &status
	}
	if req.DateFrom, err = optionalDate(q.Get("date_from"), "date_from"); err != nil {
		return req, err
	}
	if req.DateTo, err = optionalDate(q.Get("date_to"), "date_to"); err != nil {
		return req, err
	}
	if req.MinAmount, err = optionalFloat(q.Get("min_amount"), "min_amount"); err != nil {
		return req, err
	}
	if req.MaxAmount, err = optionalFloat(q.Get("max_amount"), "max_amount"); err != nil {
		return req, err
	}
	return req, nil
}

func optionalInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.Validationf("invalid %s %q", field, raw)
	}
	return v, nil
}

func optionalFloat(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, shared.Validationf("invalid %s %q", field, raw)
	}
	return &v, nil
}

// optionalDate accepts RFC 3339 timestamps or plain dates.
func optionalDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, shared.Validationf("invalid %s %q", field, raw)
}
