package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trunkline-ops/trunkline/internal/kvstore"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// Store holds one user's events: an in-memory sequence mirrored to a single
// KV key as a JSON array. Every mutation rewrites the full sequence
// (read-modify-write, no append log); a store-level mutex serializes
// concurrent requests so there is exactly one logical writer per key.
type Store struct {
	mu     sync.Mutex
	kv     kvstore.Store
	key    string
	logger *slog.Logger

	events []Event
	nextID int64
	loaded bool
}

// NewStore constructs the event store for one namespace, usually the
// principal ID. State is loaded lazily on first use.
func NewStore(kv kvstore.Store, namespace string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		key:    fmt.Sprintf("calendar:%s:events", namespace),
		logger: logger,
		nextID: 1,
	}
}

// Load returns the current event sequence. Missing, corrupt or non-array
// storage yields an empty sequence, never an error: a broken calendar must
// not take the dashboard down with it.
func (s *Store) Load(ctx context.Context) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		s.logger.Warn("calendar load", slog.String("key", s.key), slog.Any("error", err))
		return []Event{}
	}
	return s.snapshotLocked()
}

// Add assigns the next monotonic ID, appends the event and persists the
// full sequence. IDs are unique for the store's lifetime; a collision is a
// bug, not a case to handle.
func (s *Store) Add(ctx context.Context, draft Draft) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return Event{}, err
	}

	title := strings.TrimSpace(draft.Title)
	if title == "" || draft.Start.IsZero() {
		return Event{}, fmt.Errorf("%w: event needs a title and a start", shared.ErrInvalidInput)
	}

	event := normalize(Event{
		ID:     s.nextID,
		Title:  title,
		Start:  draft.Start,
		End:    draft.End,
		AllDay: draft.AllDay,
		Extended: Extended{
			Category:    draft.Category,
			Location:    draft.Location,
			Description: draft.Description,
		},
	})

	next := append(s.snapshotLocked(), event)
	if err := s.persistLocked(ctx, next); err != nil {
		return Event{}, err
	}
	s.events = next
	s.nextID++
	return clone(event), nil
}

// Update merges patch into the event with the given id and persists. A
// missing id is a silent no-op: no error, no other entry touched, nothing
// persisted. The returned event has ID zero in that case.
func (s *Store) Update(ctx context.Context, id int64, patch Patch) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return Event{}, err
	}

	idx := -1
	for i := range s.events {
		if s.events[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Event{}, nil
	}

	next := s.snapshotLocked()
	merged := applyPatch(next[idx], patch)
	if merged.Title == "" || merged.Start.IsZero() {
		return Event{}, fmt.Errorf("%w: event needs a title and a start", shared.ErrInvalidInput)
	}
	// category is the source of truth: normalize recomputes the derived
	// color after any change
	merged = normalize(merged)
	next[idx] = merged

	if err := s.persistLocked(ctx, next); err != nil {
		return Event{}, err
	}
	s.events = next
	return clone(merged), nil
}

// Remove deletes the event with the given id. Removing an id that does not
// exist is not an error and does not rewrite storage.
func (s *Store) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	next := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if e.ID != id {
			next = append(next, clone(e))
		}
	}
	if len(next) == len(s.events) {
		return nil
	}
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.events = next
	return nil
}

// ListByCategories returns the events whose category is in the active set,
// preserving the original relative order. Events were normalized on the way
// in, so an unset or unknown stored category matches the default category.
func (s *Store) ListByCategories(ctx context.Context, active []Category) []Event {
	set := make(map[Category]struct{}, len(active))
	for _, c := range active {
		set[NormalizeCategory(string(c))] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		s.logger.Warn("calendar list", slog.String("key", s.key), slog.Any("error", err))
		return []Event{}
	}

	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if _, ok := set[e.Extended.Category]; ok {
			out = append(out, clone(e))
		}
	}
	return out
}

// Upcoming returns up to limit events starting at or after now, ascending
// by start time.
func (s *Store) Upcoming(ctx context.Context, now time.Time, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		s.logger.Warn("calendar upcoming", slog.String("key", s.key), slog.Any("error", err))
		return []Event{}
	}

	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		if !e.Start.Before(now) {
			out = append(out, clone(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Resync re-reads storage and reconciles the in-memory state with it,
// reporting exactly what changed. Memory is only replaced when the two
// disagree; the last write to storage wins. A transport failure keeps the
// current state and surfaces the error.
func (s *Store) Resync(ctx context.Context) (ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, maxID, err := s.readLocked(ctx)
	if err != nil {
		return ChangeSet{}, err
	}

	var change ChangeSet
	known := make(map[int64]Event, len(s.events))
	for _, e := range s.events {
		known[e.ID] = e
	}
	seen := make(map[int64]struct{}, len(fresh))
	for _, e := range fresh {
		seen[e.ID] = struct{}{}
		old, ok := known[e.ID]
		switch {
		case !ok:
			change.Added = append(change.Added, clone(e))
		case !equal(old, e):
			change.Updated = append(change.Updated, clone(e))
		}
	}
	for _, e := range s.events {
		if _, ok := seen[e.ID]; !ok {
			change.Removed = append(change.Removed, clone(e))
		}
	}

	if !change.Empty() || !s.loaded {
		s.events = fresh
	}
	if maxID >= s.nextID {
		// another writer may have advanced the sequence; never reuse an id
		s.nextID = maxID + 1
	}
	s.loaded = true
	return change, nil
}

func (s *Store) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	events, maxID, err := s.readLocked(ctx)
	if err != nil {
		return err
	}
	s.events = events
	if maxID >= s.nextID {
		s.nextID = maxID + 1
	}
	s.loaded = true
	return nil
}

// readLocked fetches and decodes the stored sequence. Records that cannot
// be decoded, or that lack an id, a title or a start, are dropped one by
// one rather than poisoning the whole sequence.
func (s *Store) readLocked(ctx context.Context) ([]Event, int64, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, shared.ErrNotFound) {
		return []Event{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("calendar storage corrupt, starting empty",
			slog.String("key", s.key), slog.Any("error", err))
		return []Event{}, 0, nil
	}

	events := make([]Event, 0, len(records))
	var maxID int64
	for _, record := range records {
		var e Event
		if err := json.Unmarshal(record, &e); err != nil {
			s.logger.Warn("calendar record dropped", slog.String("key", s.key), slog.Any("error", err))
			continue
		}
		if e.ID <= 0 || strings.TrimSpace(e.Title) == "" || e.Start.IsZero() {
			s.logger.Warn("calendar record incomplete, dropped",
				slog.String("key", s.key), slog.Int64("id", e.ID))
			continue
		}
		e = normalize(e)
		events = append(events, e)
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	return events, maxID, nil
}

func (s *Store) persistLocked(ctx context.Context, events []Event) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("calendar: encode events: %w", err)
	}
	return s.kv.Set(ctx, s.key, string(raw))
}

func (s *Store) snapshotLocked() []Event {
	out := make([]Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, clone(e))
	}
	return out
}

func applyPatch(e Event, patch Patch) Event {
	if patch.Title != nil {
		e.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Start != nil {
		e.Start = *patch.Start
	}
	if patch.End != nil {
		end := *patch.End
		e.End = &end
	}
	if patch.ClearEnd {
		e.End = nil
	}
	if patch.AllDay != nil {
		e.AllDay = *patch.AllDay
	}
	if patch.Category != nil {
		e.Extended.Category = *patch.Category
	}
	if patch.Location != nil {
		e.Extended.Location = *patch.Location
	}
	if patch.Description != nil {
		e.Extended.Description = *patch.Description
	}
	return e
}
