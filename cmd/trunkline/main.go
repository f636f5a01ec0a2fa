package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trunkline-ops/trunkline/internal/anomalies"
	"github.com/trunkline-ops/trunkline/internal/app"
	"github.com/trunkline-ops/trunkline/internal/audit"
	"github.com/trunkline-ops/trunkline/internal/auth"
	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/calendar"
	"github.com/trunkline-ops/trunkline/internal/navigation"
	"github.com/trunkline-ops/trunkline/internal/observability"
	"github.com/trunkline-ops/trunkline/internal/platform/cache"
	"github.com/trunkline-ops/trunkline/internal/platform/db"
	"github.com/trunkline-ops/trunkline/internal/kvstore"
	"github.com/trunkline-ops/trunkline/internal/reporting"
	"github.com/trunkline-ops/trunkline/internal/shared"
	"github.com/trunkline-ops/trunkline/internal/uploads"
	"github.com/trunkline-ops/trunkline/internal/users"
	"github.com/trunkline-ops/trunkline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	// The audit trail is the only Postgres consumer. Without a DSN the
	// dashboard still runs; audit writes are dropped and the trail endpoint
	// reports itself disabled.
	var pool *pgxpool.Pool
	if cfg.PGDSN != "" {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	} else {
		logger.Warn("no postgres dsn configured, audit trail disabled")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "trunkline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	recorder := audit.NewRecorder(pool, logger)

	authClient := auth.NewClient(cfg.AuthURL, cfg.AuthProbeTimeout)
	sessionState := auth.NewSessionState(authClient, redisClient, logger, cfg.AuthFreshFor)
	authHandler := auth.NewHandler(logger, sessionState, sessionManager, csrfManager, recorder)
	guard := auth.NewGuard(sessionState, logger, app.StaticPage(logger, "loading.html"))

	menuHandler := navigation.NewHandler(navigation.Default())

	calendarKV := kvstore.NewRedisStore(redisClient, "dash:")
	calendarManager := calendar.NewManager(calendarKV, logger, cfg.CalendarIdleTTL)
	go calendarManager.Run(ctx, cfg.CalendarSyncInterval)
	calendarHandler := calendar.NewHandler(calendarManager, recorder)

	reportClient := reporting.NewClient(cfg.ReportingURL)
	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reporting.NewService(reportClient, reportCache, logger, !cfg.IsProduction())
	reportHandler := reporting.NewHandler(reportService, logger)
	go func() {
		if err := reportCache.ListenForInvalidation(ctx, ""); err != nil && ctx.Err() == nil {
			logger.Warn("report invalidation listener stopped", slog.Any("error", err))
		}
	}()

	backendClient := backend.NewClient(cfg.BackendURL)
	usersHandler := users.NewHandler(users.NewService(backendClient), recorder)
	uploadsHandler := uploads.NewHandler(uploads.NewService(backendClient), recorder)

	anomalyStore := anomalies.NewStore(redisClient)
	anomalyService := anomalies.NewService(backendClient, anomalyStore, logger)
	anomaliesHandler := anomalies.NewHandler(anomalyService, recorder)

	var auditService *audit.Service
	if pool != nil {
		auditService = audit.NewService(pool)
	}
	auditHandler := audit.NewHandler(auditService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		SessionState:   sessionState,
		Guard:          guard,

		AuthHandler:      authHandler,
		MenuHandler:      menuHandler,
		ReportHandler:    reportHandler,
		CalendarHandler:  calendarHandler,
		AnomaliesHandler: anomaliesHandler,
		UploadsHandler:   uploadsHandler,
		UsersHandler:     usersHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,

		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
