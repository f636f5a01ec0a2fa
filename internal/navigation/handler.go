package navigation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Handler serves the menu visible to the current principal.
type Handler struct {
	tree []Entry
}

// NewHandler constructs a handler over the given tree; nil means Default().
func NewHandler(tree []Entry) *Handler {
	if tree == nil {
		tree = Default()
	}
	return &Handler{tree: tree}
}

// MountRoutes registers navigation routes; mount behind the guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleMenu)
}

func (h *Handler) handleMenu(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, r, shared.ErrUnauthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": Filter(h.tree, principal.Role),
	})
}
