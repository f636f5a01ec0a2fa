// Package anomalies serves the billing anomaly review screen from a Redis
// snapshot the worker refreshes, so list reads stay fast even when the
// backend is slow.
package anomalies

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trunkline-ops/trunkline/internal/backend"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

const (
	snapshotKey = "anomalies:snapshot"
	// A dead worker must not serve week-old anomalies forever.
	snapshotTTL = 24 * time.Hour
)

// Snapshot is the cached anomaly queue with its fetch time, so the UI can
// show how fresh the list is.
type Snapshot struct {
	Anomalies   []backend.Anomaly `json:"anomalies"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// Store persists the snapshot in Redis.
type Store struct {
	client *redis.Client
}

// NewStore constructs the snapshot store.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save replaces the snapshot.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, snapshotKey, raw, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("anomalies: save snapshot: %w", err)
	}
	return nil
}

// Load returns the current snapshot; shared.ErrNotFound when none exists.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return Snapshot{}, shared.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("anomalies: load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("anomalies: decode snapshot: %w", err)
	}
	return snap, nil
}
