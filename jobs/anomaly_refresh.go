package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/trunkline-ops/trunkline/internal/anomalies"
	jobmetrics "github.com/trunkline-ops/trunkline/internal/jobs"
)

// AnomalyRefreshJob pulls the billing anomaly queue from the backend into the
// Redis snapshot that reviewers read.
type AnomalyRefreshJob struct {
	Review  *anomalies.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAnomalyRefreshJob wires dependencies for the refresh handler.
func NewAnomalyRefreshJob(review *anomalies.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnomalyRefreshJob {
	return &AnomalyRefreshJob{
		Review:  review,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes anomaly refresh tasks.
func (j *AnomalyRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("anomaly refresh: handler not configured")
	}
	var payload AnomalyRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "scheduled"
	}

	tracker := j.metrics().Track(TaskAnomalyRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	logger.Info("starting anomaly refresh")

	if j.Review == nil {
		resultErr = errors.New("anomaly refresh: review service not configured")
		return resultErr
	}

	start := j.now()
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := j.Review.Refresh(runCtx)
	if err != nil {
		resultErr = err
		logger.Error("refresh failed", slog.Any("error", err))
		return resultErr
	}

	j.recordQueue(runCtx)

	logger.Info("completed anomaly refresh",
		slog.Int("anomalies", count),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// recordQueue feeds the per-kind anomaly counters from the snapshot just
// written. Metric failures never fail the run.
func (j *AnomalyRefreshJob) recordQueue(ctx context.Context) {
	snapshot, err := j.Review.List(ctx, "")
	if err != nil {
		j.logger().Warn("anomaly metrics skipped", slog.Any("error", err))
		return
	}
	type scope struct {
		kind   string
		status string
	}
	counts := make(map[scope]int)
	for _, a := range snapshot.Anomalies {
		counts[scope{kind: a.Kind, status: a.Status}]++
	}
	for key, n := range counts {
		j.metrics().AddAnomalies(key.kind, key.status, n)
	}
}

func (j *AnomalyRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnomalyRefresh))
	}
	return slog.Default().With(slog.String("job", TaskAnomalyRefresh))
}

func (j *AnomalyRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnomalyRefreshJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
