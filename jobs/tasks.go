package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup refreshes the KPI report cache ahead of dashboard traffic.
	TaskReportWarmup = "report:warmup"
	// TaskAnomalyRefresh pulls the billing anomaly queue into the review snapshot.
	TaskAnomalyRefresh = "anomaly:refresh"
)

// ReportWarmupPayload captures what triggered a warmup run.
type ReportWarmupPayload struct {
	Reason string `json:"reason,omitempty"`
}

// AnomalyRefreshPayload captures what triggered an anomaly refresh.
type AnomalyRefreshPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewReportWarmupTask constructs an Asynq task for report cache warmup.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// NewAnomalyRefreshTask constructs an Asynq task for anomaly snapshot refresh.
func NewAnomalyRefreshTask(payload AnomalyRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnomalyRefresh, data), nil
}
