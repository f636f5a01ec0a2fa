package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
)

const requestTimeout = 10 * time.Second

// ReportService defines the KPI data contract used by the handler.
type ReportService interface {
	Summary(ctx context.Context, period string) (Summary, error)
	Revenue(ctx context.Context, period string) (RevenueKPIs, error)
	Collections(ctx context.Context, period string) (CollectionsKPIs, error)
	Receivables(ctx context.Context) (ReceivablesKPIs, error)
	VehiclePark(ctx context.Context) (VehicleParkStats, error)
	Health(ctx context.Context) error
}

// Handler serves the dashboard KPI endpoints. Both roles may read reports;
// the route guard upstream already requires an authenticated session.
type Handler struct {
	service ReportService
	logger  *slog.Logger
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(service ReportService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.handleSummary)
	r.Get("/revenue", h.handleRevenue)
	r.Get("/collections", h.handleCollections)
	r.Get("/receivables", h.handleReceivables)
	r.Get("/vehicle-park", h.handleVehiclePark)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx, r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRevenue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	block, err := h.service.Revenue(ctx, r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, block)
}

func (h *Handler) handleCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	block, err := h.service.Collections(ctx, r.URL.Query().Get("period"))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, block)
}

func (h *Handler) handleReceivables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	block, err := h.service.Receivables(ctx)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, block)
}

func (h *Handler) handleVehiclePark(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	block, err := h.service.VehiclePark(ctx)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, block)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("reporting health probe failed", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
