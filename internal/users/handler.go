package users

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Handler manages account management endpoints.
type Handler struct {
	service   *Service
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler builds the account management handler.
func NewHandler(service *Service, recorder *audit.Recorder) *Handler {
	return &Handler{
		service:   service,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers account routes; mount behind the admin role gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDeactivate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []backend.User{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": accounts})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(draft); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	account, err := h.service.Create(r.Context(), draft)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     actorEmail(r),
		Action:    audit.ActionUserCreate,
		Resource:  "user:" + strconv.FormatInt(account.ID, 10),
		RequestID: middleware.GetReqID(r.Context()),
		Detail:    map[string]any{"email": account.Email, "role": account.Role},
	})
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var draft Draft
	if err := httpx.DecodeJSON(r, &draft); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(draft); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	account, err := h.service.Update(r.Context(), id, draft)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     actorEmail(r),
		Action:    audit.ActionUserUpdate,
		Resource:  "user:" + strconv.FormatInt(account.ID, 10),
		RequestID: middleware.GetReqID(r.Context()),
		Detail:    map[string]any{"email": account.Email, "role": account.Role},
	})
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     actorEmail(r),
		Action:    audit.ActionUserDelete,
		Resource:  "user:" + strconv.FormatInt(id, 10),
		RequestID: middleware.GetReqID(r.Context()),
	})
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrInvalidInput
	}
	return id, nil
}

func actorEmail(r *http.Request) string {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		return principal.Email
	}
	return ""
}
