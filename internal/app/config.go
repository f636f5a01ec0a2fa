package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the dashboard and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// PGDSN is optional. Without it the audit trail endpoint reports itself
	// disabled and audit writes are dropped.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	AuthURL string `envconfig:"AUTH_URL" default:"http://127.0.0.1:9100"`
	// AuthProbeTimeout zero means session probes wait as long as the caller
	// does; the guard answers "checking" in the meantime.
	AuthProbeTimeout time.Duration `envconfig:"AUTH_PROBE_TIMEOUT" default:"0s"`
	AuthFreshFor     time.Duration `envconfig:"AUTH_FRESH_FOR" default:"1m"`

	ReportingURL   string        `envconfig:"REPORTING_URL" default:"http://127.0.0.1:9200"`
	ReportCacheTTL time.Duration `envconfig:"REPORT_CACHE_TTL" default:"5m"`

	BackendURL string `envconfig:"BACKEND_URL" default:"http://127.0.0.1:9300"`

	// WorkerMetricsAddr is where the job worker serves its Prometheus
	// metrics; the dashboard serves its own on /metrics.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	CalendarSyncInterval time.Duration `envconfig:"CALENDAR_SYNC_INTERVAL" default:"30s"`
	CalendarIdleTTL      time.Duration `envconfig:"CALENDAR_IDLE_TTL" default:"30m"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
