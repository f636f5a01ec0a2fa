package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Result bundles trail rows with paging.
type Result struct {
	Rows   []Entry           `json:"rows"`
	Paging shared.PageWindow `json:"paging"`
}

// Service reads the audit trail back out for the admin screen.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a trail reader over the given pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Trail returns one page of entries, newest first. It fetches one row past
// the page size to learn whether a next page exists without a COUNT(*).
func (s *Service) Trail(ctx context.Context, filters Filters) (Result, error) {
	if s == nil || s.pool == nil {
		return Result{}, fmt.Errorf("audit: trail not configured")
	}
	pageSize := filters.Limit
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.pool.Query(ctx,
		`SELECT id, at, actor, action, COALESCE(resource, ''), COALESCE(request_id, ''), detail
		   FROM audit_logs
		  WHERE ($1::timestamptz IS NULL OR at >= $1)
		    AND ($2::timestamptz IS NULL OR at < $2)
		    AND ($3::text IS NULL OR actor = $3)
		    AND ($4::text IS NULL OR action = $4)
		  ORDER BY at DESC, id DESC
		 OFFSET $5 LIMIT $6`,
		toPgTime(filters.From), toPgTime(filters.To),
		optionalText(filters.Actor), optionalText(filters.Action),
		offset, pageSize+1)
	if err != nil {
		return Result{}, fmt.Errorf("audit: query trail: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, pageSize)
	for rows.Next() {
		var (
			e      Entry
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Action, &e.Resource, &e.RequestID, &detail); err != nil {
			return Result{}, fmt.Errorf("audit: scan trail row: %w", err)
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("audit: iterate trail: %w", err)
	}

	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	return Result{Rows: entries, Paging: shared.NewPageWindow(page, pageSize, hasNext)}, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
