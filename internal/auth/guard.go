package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/trunkline-ops/trunkline/internal/platform/httpx"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// GuardState is the route guard's three-way decision.
type GuardState int

const (
	// StateChecking: the session probe has not resolved; render a neutral
	// loading response, never the login page.
	StateChecking GuardState = iota
	// StateAuthorized: a principal is present, the wrapped handler runs.
	StateAuthorized
	// StateUnauthorized: no principal; redirect to login carrying the
	// originally requested path.
	StateUnauthorized
)

func (s GuardState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthorized:
		return "authorized"
	default:
		return "unauthorized"
	}
}

// Decide maps a session snapshot onto the guard state. Pure so it can be
// tested without HTTP plumbing.
func Decide(snap Snapshot) GuardState {
	switch {
	case snap.Checking:
		return StateChecking
	case snap.Principal != nil:
		return StateAuthorized
	default:
		return StateUnauthorized
	}
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authorized principal in the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the principal set by the guard, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Guard protects routes behind the session state. It is evaluated on every
// request; destroying the session invalidates access immediately.
type Guard struct {
	state   *SessionState
	logger  *slog.Logger
	loading http.Handler
}

// NewGuard constructs the route guard. loading serves the neutral page
// shown while the session probe is unresolved; nil falls back to a plain
// 503.
func NewGuard(state *SessionState, logger *slog.Logger, loading http.Handler) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{state: state, logger: logger, loading: loading}
}

// Protect wraps a handler in the three-state guard.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		snap := g.state.Resolve(r.Context(), sess)
		switch Decide(snap) {
		case StateAuthorized:
			ctx := ContextWithPrincipal(r.Context(), *snap.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		case StateChecking:
			g.respondChecking(w, r)
		default:
			g.respondUnauthorized(w, r)
		}
	})
}

// RequireRole gates an already-guarded route to the given roles. Mount it
// inside Protect; a request that reaches it without a principal is a wiring
// bug and is rejected as unauthenticated.
func (g *Guard) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		if role.Valid() {
			allowed[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, r, shared.ErrUnauthenticated)
				return
			}
			if _, ok := allowed[principal.Role]; !ok {
				g.logger.Warn("role denied",
					slog.String("path", r.URL.Path),
					slog.String("role", principal.Role.String()))
				httpx.RespondError(w, r, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) respondChecking(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		w.Header().Set("Retry-After", "2")
		httpx.Problem(w, http.StatusServiceUnavailable, "Session Check In Progress",
			"the session could not be verified yet, retry shortly")
		return
	}
	if g.loading != nil {
		g.loading.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Retry-After", "2")
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}

func (g *Guard) respondUnauthorized(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Path
	if r.URL.RawQuery != "" {
		from += "?" + r.URL.RawQuery
	}
	if isAPIRequest(r) {
		httpx.ProblemWith(w, http.StatusUnauthorized, "Authentication Required",
			"sign in to continue", map[string]any{"from": from})
		return
	}
	// 303 so the browser replaces the location instead of re-serving the
	// protected URL after login round-trips
	http.Redirect(w, r, "/login?"+url.Values{"from": {from}}.Encode(), http.StatusSeeOther)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
