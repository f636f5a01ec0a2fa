package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Handler wires the authentication endpoints. All three are public: login
// and logout mutate the session, and the session probe is what the app
// shell polls before anything else renders.
type Handler struct {
	logger         *slog.Logger
	state          *SessionState
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	recorder       *audit.Recorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, state *SessionState, sessions *shared.SessionManager, csrf *shared.CSRFManager, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		state:          state,
		sessionManager: sessions,
		csrfManager:    csrf,
		recorder:       recorder,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type sessionResponse struct {
	Status    string     `json:"status"`
	User      *Principal `json:"user,omitempty"`
	CSRFToken string     `json:"csrf_token,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, r, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(creds); err != nil {
		httpx.RespondError(w, r, err)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	principal, err := h.state.Login(r.Context(), sess, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.recorder.Record(r.Context(), audit.Entry{
				Actor:     creds.Email,
				Action:    audit.ActionLoginFailed,
				RequestID: middleware.GetReqID(r.Context()),
				Detail:    map[string]any{"remote": r.RemoteAddr},
			})
		}
		httpx.RespondError(w, r, err)
		return
	}

	h.recorder.Record(r.Context(), audit.Entry{
		Actor:     principal.Email,
		Action:    audit.ActionLogin,
		RequestID: middleware.GetReqID(r.Context()),
		Detail:    map[string]any{"remote": r.RemoteAddr, "role": principal.Role.String()},
	})

	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Status:    StateAuthorized.String(),
		User:      &principal,
		CSRFToken: csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if principal, ok := PrincipalFromContext(r.Context()); ok {
			h.recorder.Record(r.Context(), audit.Entry{
				Actor:     principal.Email,
				Action:    audit.ActionLogout,
				RequestID: middleware.GetReqID(r.Context()),
			})
		}
		h.state.Logout(r.Context(), sess)
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession is the probe the shell calls on boot and after focus
// regains. Unauthorized responses still carry a CSRF token so the login
// form can post.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	snap := h.state.Resolve(r.Context(), sess)
	switch Decide(snap) {
	case StateAuthorized:
		csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
		if err != nil {
			h.logger.Warn("ensure csrf token", slog.Any("error", err))
		}
		httpx.JSON(w, http.StatusOK, sessionResponse{
			Status:    StateAuthorized.String(),
			User:      snap.Principal,
			CSRFToken: csrfToken,
		})
	case StateChecking:
		w.Header().Set("Retry-After", "2")
		httpx.Problem(w, http.StatusServiceUnavailable, "Session Check In Progress",
			"the session could not be verified yet, retry shortly")
	default:
		csrfToken := ""
		if sess != nil {
			var err error
			csrfToken, err = h.csrfManager.EnsureToken(r.Context(), sess)
			if err != nil {
				h.logger.Warn("ensure csrf token", slog.Any("error", err))
			}
		}
		httpx.ProblemWith(w, http.StatusUnauthorized, "Authentication Required",
			"sign in to continue", map[string]any{"csrf_token": csrfToken})
	}
}
