package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE raised when (request_id, action) already
// exists; retried requests must not duplicate trail rows.
const uniqueViolation = "23505"

// Recorder writes entries to the audit trail. A nil Recorder is valid and
// drops everything, so callers never need to guard their Record calls when
// the trail is not configured.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	clock  func() time.Time
}

// NewRecorder constructs a Recorder over the given pool.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger, clock: time.Now}
}

// Record persists one entry. Failures are logged and swallowed: the trail
// must never break the action it describes.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.pool == nil {
		return
	}
	at := entry.At
	if at.IsZero() {
		at = r.clock().UTC()
	}
	var detail []byte
	if len(entry.Detail) > 0 {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			r.logger.Warn("audit marshal detail", slog.Any("error", err))
			detail = nil
		}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (at, actor, action, resource, request_id, detail)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		at, entry.Actor, entry.Action, entry.Resource, entry.RequestID, detail)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return
		}
		r.logger.Warn("audit record",
			slog.String("action", entry.Action),
			slog.Any("error", err))
	}
}
