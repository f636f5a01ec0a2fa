package calendar

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

const (
	defaultUpcomingLimit = 5
	maxUpcomingLimit     = 50
)

// Handler exposes the calendar over the JSON API. Every route requires an
// authorized principal; the store namespace is the principal's ID.
type Handler struct {
	manager   *Manager
	recorder  *audit.Recorder
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs the calendar handler.
func NewHandler(manager *Manager, recorder *audit.Recorder) *Handler {
	return &Handler{
		manager:   manager,
		recorder:  recorder,
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers calendar routes; mount behind the guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/events", h.handleList)
	r.Post("/events", h.handleAdd)
	r.Patch("/events/{id}", h.handleUpdate)
	r.Delete("/events/{id}", h.handleRemove)
	r.Get("/upcoming", h.handleUpcoming)
	r.Get("/preferences", h.handleGetPreferences)
	r.Put("/preferences", h.handlePutPreferences)
	r.Get("/categories", h.handleCategories)
	r.Post("/resync", h.handleResync)
}

func (h *Handler) stores(r *http.Request) (*Store, *PrefStore, *auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return nil, nil, nil, shared.ErrUnauthenticated
	}
	store, prefs := h.manager.ForPrincipal(principal.ID)
	return store, prefs, &principal, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	store, _, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	rawFilter := strings.TrimSpace(r.URL.Query().Get("categories"))
	var events []Event
	if rawFilter == "" {
		events = store.Load(r.Context())
	} else {
		active := make([]Category, 0, 4)
		for _, part := range strings.Split(rawFilter, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				active = append(active, Category(part))
			}
		}
		events = store.ListByCategories(r.Context(), active)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

type eventRequest struct {
	Title       string `json:"title" validate:"required"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end"`
	AllDay      bool   `json:"allDay"`
	Category    string `json:"category" validate:"omitempty,oneof=meeting task reminder holiday other"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	store, _, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	start, err := parseEventTime(req.Start)
	if err != nil {
		httpx.RespondError(w, r, fmt.Errorf("%w: start: %v", shared.ErrInvalidInput, err))
		return
	}
	var end *time.Time
	if req.End != "" {
		parsed, err := parseEventTime(req.End)
		if err != nil {
			httpx.RespondError(w, r, fmt.Errorf("%w: end: %v", shared.ErrInvalidInput, err))
			return
		}
		end = &parsed
	}

	event, err := store.Add(r.Context(), Draft{
		Title:       req.Title,
		Start:       start,
		End:         end,
		AllDay:      req.AllDay,
		Category:    NormalizeCategory(req.Category),
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, event)
}

type eventPatchRequest struct {
	Title       *string `json:"title"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	AllDay      *bool   `json:"allDay"`
	Category    *string `json:"category"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	store, _, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}

	var req eventPatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}

	patch := Patch{
		Title:       req.Title,
		AllDay:      req.AllDay,
		Location:    req.Location,
		Description: req.Description,
	}
	if req.Start != nil {
		start, err := parseEventTime(*req.Start)
		if err != nil {
			httpx.RespondError(w, r, fmt.Errorf("%w: start: %v", shared.ErrInvalidInput, err))
			return
		}
		patch.Start = &start
	}
	if req.End != nil {
		if *req.End == "" {
			patch.ClearEnd = true
		} else {
			end, err := parseEventTime(*req.End)
			if err != nil {
				httpx.RespondError(w, r, fmt.Errorf("%w: end: %v", shared.ErrInvalidInput, err))
				return
			}
			patch.End = &end
		}
	}
	if req.Category != nil {
		// strict at the API edge: unknown categories are an input error,
		// not a silent fallback
		cat := Category(strings.ToLower(strings.TrimSpace(*req.Category)))
		if !cat.Valid() {
			httpx.RespondError(w, r, fmt.Errorf("%w: unknown category %q", shared.ErrInvalidInput, *req.Category))
			return
		}
		patch.Category = &cat
	}

	event, err := store.Update(r.Context(), id, patch)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if event.ID == 0 {
		httpx.Problem(w, http.StatusNotFound, "Event Not Found",
			fmt.Sprintf("no event with id %d", id))
		return
	}
	httpx.JSON(w, http.StatusOK, event)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	store, _, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := store.Remove(r.Context(), id); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	store, _, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	limit := defaultUpcomingLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			httpx.RespondError(w, r, shared.ErrInvalidInput)
			return
		}
		if parsed > maxUpcomingLimit {
			parsed = maxUpcomingLimit
		}
		limit = parsed
	}
	events := store.Upcoming(r.Context(), h.now().UTC(), limit)
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	_, prefs, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, prefs.Load(r.Context()))
}

func (h *Handler) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	_, prefs, _, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req Preferences
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := prefs.Save(r.Context(), req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	type categoryInfo struct {
		Name  Category `json:"name"`
		Color string   `json:"color"`
	}
	out := make([]categoryInfo, 0, len(Categories()))
	for _, c := range Categories() {
		out = append(out, categoryInfo{Name: c, Color: c.Color()})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (h *Handler) handleResync(w http.ResponseWriter, r *http.Request) {
	store, _, principal, err := h.stores(r)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	change, err := store.Resync(r.Context())
	if err != nil {
		httpx.RespondError(w, r, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err))
		return
	}
	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     principal.Email,
		Action:    audit.ActionCalendarSync,
		RequestID: middleware.GetReqID(r.Context()),
		Detail: map[string]any{
			"added":   len(change.Added),
			"updated": len(change.Updated),
			"removed": len(change.Removed),
		},
	})
	httpx.JSON(w, http.StatusOK, change)
}

// parseEventTime accepts the widget's two timestamp shapes: full RFC3339
// and the naive "2006-01-02T15:04" quick-add form, read as UTC.
func parseEventTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
