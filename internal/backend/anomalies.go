package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Anomaly statuses as the backend reports them.
const (
	AnomalyOpen         = "open"
	AnomalyAcknowledged = "acknowledged"
)

// Anomaly is one suspicious billing record flagged by the backend's checks.
type Anomaly struct {
	ID         int64     `json:"id"`
	Account    string    `json:"account"`
	Kind       string    `json:"kind"`
	AmountDZD  float64   `json:"amount_dzd"`
	Status     string    `json:"status"`
	DetectedAt time.Time `json:"detected_at"`
	Note       string    `json:"note,omitempty"`
}

// ListAnomalies returns the current anomaly queue, newest first.
func (c *Client) ListAnomalies(ctx context.Context) ([]Anomaly, error) {
	var payload struct {
		Anomalies []Anomaly `json:"anomalies"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/anomalies", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Anomalies, nil
}

// AcknowledgeAnomaly marks an anomaly as reviewed, with an optional note for
// the person handling the account.
func (c *Client) AcknowledgeAnomaly(ctx context.Context, id int64, note string) (Anomaly, error) {
	body := struct {
		Note string `json:"note,omitempty"`
	}{Note: note}
	var anomaly Anomaly
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/v1/anomalies/%d/ack", id), body, &anomaly); err != nil {
		return Anomaly{}, err
	}
	return anomaly, nil
}
