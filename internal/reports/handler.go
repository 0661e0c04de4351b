package reports

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/reseller/internal/platform/httpx"
	"github.com/odyssey-erp/reseller/internal/rbac"
	"github.com/odyssey-erp/reseller/internal/shared"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) Margins(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MarginFilter{
		Category:    q.Get("category"),
		Subcategory: q.Get("subcategory"),
		Brand:       q.Get("brand"),
		Search:      q.Get("search"),
		SortField:   q.Get("sort"),
		SortDir:     q.Get("dir"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("limit must be an integer"))
			return
		}
		filter.Limit = limit
	}

	report, err := h.service.MarginReport(r.Context(), filter)
	if err != nil {
		h.fail(w, "margin report failed", err)
		return
	}

	if q.Get("format") == "xlsx" {
		var buf bytes.Buffer
		if err := WriteMarginWorkbook(&buf, report); err != nil {
			h.fail(w, "margin workbook failed", shared.Processing("write margin workbook", err))
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", "attachment; filename=margins.xlsx")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = buf.WriteTo(w)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) ProfitabilityReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Profitability(r.Context())
	if err != nil {
		h.fail(w, "profitability report failed", err)
		return
	}
	httpx.OK(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if !shared.IsClassified(err) || errors.Is(err, shared.ErrProcessing) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
