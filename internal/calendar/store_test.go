package calendar_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trunkline-ops/trunkline/internal/calendar"
	"github.com/trunkline-ops/trunkline/internal/shared"
	_ "github.com/trunkline-ops/trunkline/testing"
)

// memKV is an in-memory kvstore.Store with switchable failure modes, so
// store behavior under storage trouble is testable without a backend.
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	failGet bool
	failSet bool
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", fmt.Errorf("kv: transport down")
	}
	v, ok := m.data[key]
	if !ok {
		return "", shared.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return fmt.Errorf("kv: transport down")
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *memKV) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func draft(title string, start time.Time, cat calendar.Category) calendar.Draft {
	return calendar.Draft{Title: title, Start: start, Category: cat}
}

func TestAddAssignsMonotonicUniqueIDs(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	seen := make(map[int64]bool)
	var last int64
	for i := 0; i < 5; i++ {
		event, err := store.Add(ctx, draft(fmt.Sprintf("event %d", i), baseTime.Add(time.Duration(i)*time.Hour), calendar.CategoryTask))
		require.NoError(t, err)
		require.False(t, seen[event.ID], "id %d assigned twice", event.ID)
		require.Greater(t, event.ID, last)
		seen[event.ID] = true
		last = event.ID
	}
}

func TestAddPersistsFullSequence(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, draft("first", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)
	_, err = store.Add(ctx, draft("second", baseTime.Add(time.Hour), calendar.CategoryTask))
	require.NoError(t, err)

	var persisted []calendar.Event
	require.NoError(t, json.Unmarshal([]byte(kv.raw("calendar:u1:events")), &persisted))
	require.Len(t, persisted, 2)
	require.Equal(t, "first", persisted[0].Title)
	require.Equal(t, "second", persisted[1].Title)
}

func TestAddRejectsMissingTitleOrStart(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, calendar.Draft{Title: "   ", Start: baseTime})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = store.Add(ctx, calendar.Draft{Title: "no start"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	require.Empty(t, store.Load(ctx))
}

func TestLoadMissingKeyYieldsEmpty(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	events := store.Load(context.Background())
	require.NotNil(t, events)
	require.Empty(t, events)
}

func TestLoadCorruptStorageYieldsEmpty(t *testing.T) {
	kv := newMemKV()
	kv.put("calendar:u1:events", `{"this is": "not an array`)
	store := calendar.NewStore(kv, "u1", nil)

	require.Empty(t, store.Load(context.Background()))

	// the store keeps working after the corrupt read
	event, err := store.Add(context.Background(), draft("fresh start", baseTime, calendar.CategoryOther))
	require.NoError(t, err)
	require.Equal(t, int64(1), event.ID)
}

func TestLoadDropsIncompleteRecords(t *testing.T) {
	kv := newMemKV()
	kv.put("calendar:u1:events", `[
		{"id":1,"title":"keep me","start":"2024-01-01T09:00:00Z","extendedProps":{"category":"meeting"}},
		{"id":2,"start":"2024-01-01T10:00:00Z"},
		{"title":"no id","start":"2024-01-01T11:00:00Z"},
		{"id":4,"title":"no start"},
		"not even an object"
	]`)
	store := calendar.NewStore(kv, "u1", nil)

	events := store.Load(context.Background())
	require.Len(t, events, 1)
	require.Equal(t, "keep me", events[0].Title)
}

func TestLoadNormalizesCategoryAndColor(t *testing.T) {
	kv := newMemKV()
	kv.put("calendar:u1:events", `[
		{"id":1,"title":"mystery","start":"2024-01-01T09:00:00Z","backgroundColor":"#123456","extendedProps":{"category":"mystery"}},
		{"id":2,"title":"planning","start":"2024-01-01T10:00:00Z","backgroundColor":"#ffffff","extendedProps":{"category":"meeting"}}
	]`)
	store := calendar.NewStore(kv, "u1", nil)

	events := store.Load(context.Background())
	require.Len(t, events, 2)
	require.Equal(t, calendar.CategoryOther, events[0].Extended.Category)
	require.Equal(t, calendar.CategoryOther.Color(), events[0].BackgroundColor)
	require.Equal(t, calendar.CategoryMeeting, events[1].Extended.Category)
	require.Equal(t, calendar.CategoryMeeting.Color(), events[1].BackgroundColor,
		"stored color must be recomputed from the category, category is the source of truth")
}

func TestIDCounterSeedsFromMaxLoadedID(t *testing.T) {
	kv := newMemKV()
	kv.put("calendar:u1:events", `[
		{"id":3,"title":"three","start":"2024-01-01T09:00:00Z"},
		{"id":7,"title":"seven","start":"2024-01-02T09:00:00Z"}
	]`)
	store := calendar.NewStore(kv, "u1", nil)

	event, err := store.Add(context.Background(), draft("next", baseTime, calendar.CategoryTask))
	require.NoError(t, err)
	require.Equal(t, int64(8), event.ID)
}

func TestUpdateMergesAndRecomputesColor(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	created, err := store.Add(ctx, draft("planning", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)
	require.Equal(t, calendar.CategoryMeeting.Color(), created.BackgroundColor)

	newCat := calendar.CategoryTask
	updated, err := store.Update(ctx, created.ID, calendar.Patch{Category: &newCat})
	require.NoError(t, err)
	require.Equal(t, calendar.CategoryTask, updated.Extended.Category)
	require.Equal(t, calendar.CategoryTask.Color(), updated.BackgroundColor)
	require.Equal(t, "planning", updated.Title, "unpatched fields keep their values")
}

func TestUpdateMissingIDIsSilentNoOp(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, draft("only one", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)
	before := kv.raw("calendar:u1:events")

	title := "should not land"
	updated, err := store.Update(ctx, 999, calendar.Patch{Title: &title})
	require.NoError(t, err, "missing id is not an error")
	require.Zero(t, updated.ID)

	events := store.Load(ctx)
	require.Len(t, events, 1)
	require.Equal(t, "only one", events[0].Title, "no other entry may be mutated")
	require.Equal(t, before, kv.raw("calendar:u1:events"), "nothing may be persisted")
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	created, err := store.Add(ctx, draft("doomed", baseTime, calendar.CategoryReminder))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, created.ID))
	require.Empty(t, store.Load(ctx))

	require.NoError(t, store.Remove(ctx, created.ID), "second remove is a no-op")
	require.NoError(t, store.Remove(ctx, 12345))
}

func TestListByCategoriesScenario(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	standup, err := store.Add(ctx, calendar.Draft{
		Title:    "Standup",
		Start:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Category: calendar.CategoryMeeting,
	})
	require.NoError(t, err)

	meetings := store.ListByCategories(ctx, []calendar.Category{calendar.CategoryMeeting})
	require.Len(t, meetings, 1)
	require.Equal(t, standup.ID, meetings[0].ID)
	require.Equal(t, "Standup", meetings[0].Title)

	tasks := store.ListByCategories(ctx, []calendar.Category{calendar.CategoryTask})
	require.NotNil(t, tasks)
	require.Empty(t, tasks)
}

func TestListByCategoriesPreservesOrder(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	titles := []struct {
		name string
		cat  calendar.Category
	}{
		{"a", calendar.CategoryMeeting},
		{"b", calendar.CategoryTask},
		{"c", calendar.CategoryMeeting},
		{"d", calendar.CategoryHoliday},
		{"e", calendar.CategoryMeeting},
	}
	for i, tc := range titles {
		_, err := store.Add(ctx, draft(tc.name, baseTime.Add(time.Duration(i)*time.Hour), tc.cat))
		require.NoError(t, err)
	}

	got := store.ListByCategories(ctx, []calendar.Category{calendar.CategoryMeeting, calendar.CategoryHoliday})
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.Title)
	}
	require.Equal(t, []string{"a", "c", "d", "e"}, names, "original relative order must survive filtering")
}

func TestListByCategoriesEmptySetMatchesNothing(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()
	_, err := store.Add(ctx, draft("present", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)

	require.Empty(t, store.ListByCategories(ctx, nil))
}

func TestListByCategoriesUnknownStoredCategoryMatchesDefault(t *testing.T) {
	kv := newMemKV()
	kv.put("calendar:u1:events", `[{"id":1,"title":"odd","start":"2024-01-01T09:00:00Z","extendedProps":{"category":"whatever"}}]`)
	store := calendar.NewStore(kv, "u1", nil)

	got := store.ListByCategories(context.Background(), []calendar.Category{calendar.CategoryOther})
	require.Len(t, got, 1)
	require.Equal(t, "odd", got[0].Title)
}

func TestUpcoming(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Add(ctx, draft("past", now.Add(-time.Hour), calendar.CategoryTask))
	require.NoError(t, err)
	_, err = store.Add(ctx, draft("soon", now.Add(time.Hour), calendar.CategoryTask))
	require.NoError(t, err)
	_, err = store.Add(ctx, draft("later", now.Add(48*time.Hour), calendar.CategoryTask))
	require.NoError(t, err)
	_, err = store.Add(ctx, draft("soonest", now, calendar.CategoryTask))
	require.NoError(t, err)

	got := store.Upcoming(ctx, now, 2)
	require.Len(t, got, 2)
	require.Equal(t, "soonest", got[0].Title, "start == now counts as upcoming")
	require.Equal(t, "soon", got[1].Title)
}

func TestResyncNoChangeIsEmpty(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()
	_, err := store.Add(ctx, draft("stable", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)

	change, err := store.Resync(ctx)
	require.NoError(t, err)
	require.True(t, change.Empty())
}

func TestResyncDetectsExternalChanges(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	kept, err := store.Add(ctx, draft("kept", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)
	changed, err := store.Add(ctx, draft("changed", baseTime.Add(time.Hour), calendar.CategoryTask))
	require.NoError(t, err)
	dropped, err := store.Add(ctx, draft("dropped", baseTime.Add(2*time.Hour), calendar.CategoryOther))
	require.NoError(t, err)

	// another writer rewrites the key behind this store's back
	other := calendar.NewStore(kv, "u1", nil)
	_, err = other.Resync(ctx)
	require.NoError(t, err)
	newTitle := "changed elsewhere"
	_, err = other.Update(ctx, changed.ID, calendar.Patch{Title: &newTitle})
	require.NoError(t, err)
	require.NoError(t, other.Remove(ctx, dropped.ID))
	added, err := other.Add(ctx, draft("appeared", baseTime.Add(3*time.Hour), calendar.CategoryReminder))
	require.NoError(t, err)

	change, err := store.Resync(ctx)
	require.NoError(t, err)
	require.Len(t, change.Added, 1)
	require.Equal(t, added.ID, change.Added[0].ID)
	require.Len(t, change.Updated, 1)
	require.Equal(t, "changed elsewhere", change.Updated[0].Title)
	require.Len(t, change.Removed, 1)
	require.Equal(t, dropped.ID, change.Removed[0].ID)

	events := store.Load(ctx)
	require.Len(t, events, 3)
	require.Equal(t, kept.ID, events[0].ID, "untouched events survive the swap")
}

func TestResyncAdvancesIDCounterPastExternalWrites(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, draft("mine", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)

	// an external writer appended id 10 directly
	kv.put("calendar:u1:events", `[
		{"id":1,"title":"mine","start":"2024-01-01T09:00:00Z","extendedProps":{"category":"meeting"}},
		{"id":10,"title":"external","start":"2024-01-02T09:00:00Z","extendedProps":{"category":"task"}}
	]`)

	_, err = store.Resync(ctx)
	require.NoError(t, err)

	next, err := store.Add(ctx, draft("after resync", baseTime.Add(time.Hour), calendar.CategoryTask))
	require.NoError(t, err)
	require.Equal(t, int64(11), next.ID, "the id sequence must never reuse an id seen in storage")
}

func TestResyncTransportFailureKeepsState(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, draft("precious", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)

	kv.failGet = true
	_, err = store.Resync(ctx)
	require.Error(t, err)
	kv.failGet = false

	events := store.Load(ctx)
	require.Len(t, events, 1, "a failed resync must not clear in-memory state")
}

func TestAddPersistFailureLeavesStateUntouched(t *testing.T) {
	kv := newMemKV()
	store := calendar.NewStore(kv, "u1", nil)
	ctx := context.Background()

	_, err := store.Add(ctx, draft("landed", baseTime, calendar.CategoryMeeting))
	require.NoError(t, err)

	kv.failSet = true
	_, err = store.Add(ctx, draft("lost", baseTime.Add(time.Hour), calendar.CategoryTask))
	require.Error(t, err)
	kv.failSet = false

	events := store.Load(ctx)
	require.Len(t, events, 1)
	require.Equal(t, "landed", events[0].Title)
}

func TestConcurrentAddsStaySerialized(t *testing.T) {
	store := calendar.NewStore(newMemKV(), "u1", nil)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	ids := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event, err := store.Add(ctx, draft(fmt.Sprintf("w%d", i), baseTime.Add(time.Duration(i)*time.Minute), calendar.CategoryTask))
			if err != nil {
				t.Errorf("add: %v", err)
				return
			}
			ids <- event.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d under concurrency", id)
		seen[id] = true
	}
	require.Len(t, seen, workers)
	require.Len(t, store.Load(ctx), workers)
}
