package audit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 50
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRangeDays = 90
)

// Handler serves the audit trail to the admin screen.
type Handler struct {
	service *Service
	now     func() time.Time
}

// NewHandler constructs an audit trail handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// MountRoutes registers trail routes; callers gate them behind the admin role.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTrail)
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Audit Trail Disabled",
			"no audit database is configured")
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	result, err := h.service.Trail(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) parseFilters(r *http.Request) (Filters, error) {
	now := h.now().UTC()
	q := r.URL.Query()

	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return Filters{}, shared.ErrInvalidInput
	}
	// the "to" day is inclusive in the UI, the query bound is exclusive
	toTime = toTime.Add(24 * time.Hour)

	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return Filters{}, shared.ErrInvalidInput
	}
	if fromTime.After(toTime) || toTime.Sub(fromTime) > maxDateRangeDays*24*time.Hour {
		return Filters{}, shared.ErrInvalidInput
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Filters{}, shared.ErrInvalidInput
		}
		page = parsed
	}
	limit := defaultPageSize
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Filters{}, shared.ErrInvalidInput
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	return Filters{
		From:   fromTime,
		To:     toTime,
		Actor:  strings.TrimSpace(q.Get("actor")),
		Action: strings.TrimSpace(q.Get("action")),
		Page:   page,
		Limit:  limit,
	}, nil
}
