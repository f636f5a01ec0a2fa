package anomalies

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Handler manages anomaly review endpoints. Both roles review and ack;
// acknowledging is a statement that a human looked, not an admin action.
type Handler struct {
	service  *Service
	recorder *audit.Recorder
}

// NewHandler builds the anomaly review handler.
func NewHandler(service *Service, recorder *audit.Recorder) *Handler {
	return &Handler{service: service, recorder: recorder}
}

// MountRoutes registers anomaly routes; mount behind the guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/{id}/ack", h.handleAcknowledge)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

type ackRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	var body ackRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, r, shared.ErrInvalidInput)
			return
		}
	}

	acked, err := h.service.Acknowledge(r.Context(), id, body.Note)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     actorEmail(r),
		Action:    audit.ActionAnomalyAck,
		Resource:  "anomaly:" + strconv.FormatInt(acked.ID, 10),
		RequestID: middleware.GetReqID(r.Context()),
		Detail:    map[string]any{"account": acked.Account, "note": body.Note},
	})
	httpx.JSON(w, http.StatusOK, acked)
}

func actorEmail(r *http.Request) string {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		return principal.Email
	}
	return ""
}
