package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/trunkline-ops/trunkline/internal/anomalies"
	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/calendar"
	"github.com/trunkline-ops/trunkline/internal/navigation"
	"github.com/trunkline-ops/trunkline/internal/observability"
	"github.com/trunkline-ops/trunkline/internal/reporting"
	"github.com/trunkline-ops/trunkline/internal/shared"
	"github.com/trunkline-ops/trunkline/internal/uploads"
	"github.com/trunkline-ops/trunkline/internal/users"
	"github.com/trunkline-ops/trunkline/jobs"
	"github.com/trunkline-ops/trunkline/web"
)

// shellPaths are the client-routed pages that all serve the dashboard shell.
// They mirror the navigation tree; the shell reads the URL and renders the
// matching view after the menu arrives.
var shellPaths = []string{
	"/",
	"/dashboard",
	"/reports",
	"/reports/*",
	"/billing-upload",
	"/anomalies",
	"/calendar",
	"/manage-users",
	"/profile",
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	SessionState   *auth.SessionState
	Guard          *auth.Guard

	AuthHandler      *auth.Handler
	MenuHandler      *navigation.Handler
	ReportHandler    *reporting.Handler
	CalendarHandler  *calendar.Handler
	AnomaliesHandler *anomalies.Handler
	UploadsHandler   *uploads.Handler
	UsersHandler     *users.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the dashboard.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	shell := StaticPage(params.Logger, "index.html")
	login := StaticPage(params.Logger, "login.html")

	// Login stays public. A visitor who is already signed in is bounced back
	// to where they came from, or the dashboard.
	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		if params.SessionState != nil {
			sess := shared.SessionFromContext(r.Context())
			snap := params.SessionState.Resolve(r.Context(), sess)
			if snap.Principal != nil {
				http.Redirect(w, r, safeRedirectTarget(r.URL.Query().Get("from")), http.StatusSeeOther)
				return
			}
		}
		login.ServeHTTP(w, r)
	})

	// Every dashboard page runs through the guard; the shell itself decides
	// nothing about roles, the API does.
	r.Group(func(r chi.Router) {
		r.Use(params.Guard.Protect)
		for _, path := range shellPaths {
			r.Get(path, shell.ServeHTTP)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Protect)

			r.Route("/navigation", params.MenuHandler.MountRoutes)
			r.Route("/reports", params.ReportHandler.MountRoutes)
			r.Route("/calendar", params.CalendarHandler.MountRoutes)
			r.Route("/anomalies", params.AnomaliesHandler.MountRoutes)

			r.Group(func(r chi.Router) {
				r.Use(params.Guard.RequireRole(auth.RoleAdmin))
				r.Route("/uploads", params.UploadsHandler.MountRoutes)
				r.Route("/users", params.UsersHandler.MountRoutes)
				r.Route("/audit", params.AuditHandler.MountRoutes)
				r.Route("/jobs", params.JobHandler.MountRoutes)
			})
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets carry no session state and skip the guard entirely.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// StaticPage serves one embedded page, read once at startup.
func StaticPage(logger *slog.Logger, name string) http.Handler {
	data, err := fs.ReadFile(web.Pages, "pages/"+name)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("load embedded page", slog.String("page", name), slog.Any("error", err))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	})
}

// safeRedirectTarget keeps post-login redirects on this origin.
func safeRedirectTarget(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/dashboard"
	}
	return raw
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// assets are cached for an hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
