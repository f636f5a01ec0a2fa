// Package audit keeps a local trail of security-relevant dashboard actions:
// sign-ins, sign-outs, uploads and user administration. The trail lives in
// PostgreSQL so it survives upstream outages and Redis flushes.
package audit

import "time"

// Entry is one recorded action.
type Entry struct {
	ID        int64          `json:"id"`
	At        time.Time      `json:"at"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Actions recorded by the dashboard. Kept as constants so the trail stays
// queryable; free-form action strings rot fast.
const (
	ActionLogin        = "auth.login"
	ActionLoginFailed  = "auth.login_failed"
	ActionLogout       = "auth.logout"
	ActionUpload       = "upload.forward"
	ActionUserCreate   = "users.create"
	ActionUserUpdate   = "users.update"
	ActionUserDelete   = "users.delete"
	ActionAnomalyAck   = "anomalies.ack"
	ActionCalendarSync = "calendar.resync"
)

// Filters narrows a trail listing.
type Filters struct {
	From   time.Time
	To     time.Time
	Actor  string
	Action string
	Page   int
	Limit  int
}
