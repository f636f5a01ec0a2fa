package anomalies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Reviewer is the slice of the backend API the review screen needs.
type Reviewer interface {
	ListAnomalies(ctx context.Context) ([]backend.Anomaly, error)
	AcknowledgeAnomaly(ctx context.Context, id int64, note string) (backend.Anomaly, error)
}

// Service reads the anomaly queue from the snapshot and proxies
// acknowledgements to the backend.
type Service struct {
	reviewer Reviewer
	store    *Store
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs the anomaly review service.
func NewService(reviewer Reviewer, store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reviewer: reviewer,
		store:    store,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the service clock for testing.
func (s *Service) WithClock(fn func() time.Time) {
	if fn != nil {
		s.clock = fn
	}
}

// Refresh pulls the queue from the backend into the snapshot. The worker
// calls this on a schedule; it returns the queue size for job logs.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	queue, err := s.reviewer.ListAnomalies(ctx)
	if err != nil {
		return 0, err
	}
	snap := Snapshot{Anomalies: queue, RefreshedAt: s.clock().UTC()}
	if err := s.store.Save(ctx, snap); err != nil {
		return 0, err
	}
	return len(queue), nil
}

// List serves the snapshot, optionally filtered by status. Before the first
// worker run (or when Redis lost the key) it refreshes inline so the screen
// is never empty just because the cache is.
func (s *Service) List(ctx context.Context, status string) (Snapshot, error) {
	if err := validStatus(status); err != nil {
		return Snapshot{}, err
	}
	snap, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Info("anomaly snapshot unavailable, refreshing inline", slog.Any("error", err))
		if _, err := s.Refresh(ctx); err != nil {
			return Snapshot{}, err
		}
		if snap, err = s.store.Load(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if status != "" {
		filtered := make([]backend.Anomaly, 0, len(snap.Anomalies))
		for _, a := range snap.Anomalies {
			if a.Status == status {
				filtered = append(filtered, a)
			}
		}
		snap.Anomalies = filtered
	}
	if snap.Anomalies == nil {
		snap.Anomalies = []backend.Anomaly{}
	}
	return snap, nil
}

// Acknowledge proxies the ack to the backend, then patches the snapshot so
// the review screen reflects it before the next scheduled refresh.
func (s *Service) Acknowledge(ctx context.Context, id int64, note string) (backend.Anomaly, error) {
	acked, err := s.reviewer.AcknowledgeAnomaly(ctx, id, note)
	if err != nil {
		return backend.Anomaly{}, err
	}
	s.patchSnapshot(ctx, acked)
	return acked, nil
}

// patchSnapshot is best effort: a failure only delays the screen until the
// next refresh.
func (s *Service) patchSnapshot(ctx context.Context, acked backend.Anomaly) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return
	}
	for i, a := range snap.Anomalies {
		if a.ID == acked.ID {
			snap.Anomalies[i] = acked
			if err := s.store.Save(ctx, snap); err != nil {
				s.logger.Warn("anomaly snapshot patch failed", slog.Any("error", err))
			}
			return
		}
	}
}

func validStatus(status string) error {
	switch status {
	case "", backend.AnomalyOpen, backend.AnomalyAcknowledged:
		return nil
	default:
		return fmt.Errorf("%w: status %q", shared.ErrInvalidInput, status)
	}
}
