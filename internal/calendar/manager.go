package calendar

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/trunkline-ops/trunkline/internal/kvstore"
)

// managed pairs a store with when it was last touched by a request, so the
// sync loop can drop calendars nobody is looking at anymore.
type managed struct {
	store    *Store
	prefs    *PrefStore
	lastUsed time.Time
}

// Manager hands out one event store per principal and keeps the active ones
// reconciled with storage in the background.
type Manager struct {
	mu      sync.Mutex
	kv      kvstore.Store
	logger  *slog.Logger
	stores  map[string]*managed
	idleTTL time.Duration
	clock   func() time.Time
}

// NewManager constructs the registry. idleTTL bounds how long an untouched
// store stays registered; zero keeps every store forever.
func NewManager(kv kvstore.Store, logger *slog.Logger, idleTTL time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		kv:      kv,
		logger:  logger,
		stores:  make(map[string]*managed),
		idleTTL: idleTTL,
		clock:   time.Now,
	}
}

// ForPrincipal returns the store and preference store for one principal,
// creating them on first use.
func (m *Manager) ForPrincipal(principalID int64) (*Store, *PrefStore) {
	ns := strconv.FormatInt(principalID, 10)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.stores[ns]
	if !ok {
		entry = &managed{
			store: NewStore(m.kv, ns, m.logger),
			prefs: NewPrefStore(m.kv, ns, m.logger),
		}
		m.stores[ns] = entry
	}
	entry.lastUsed = m.clock()
	return entry.store, entry.prefs
}

// SyncAll runs one reconcile pass over every active store and evicts the
// idle ones. The background loop calls this on a timer; tests call it
// directly for determinism.
func (m *Manager) SyncAll(ctx context.Context) {
	now := m.clock()

	m.mu.Lock()
	type pass struct {
		ns    string
		store *Store
	}
	active := make([]pass, 0, len(m.stores))
	for ns, entry := range m.stores {
		if m.idleTTL > 0 && now.Sub(entry.lastUsed) > m.idleTTL {
			delete(m.stores, ns)
			continue
		}
		active = append(active, pass{ns: ns, store: entry.store})
	}
	m.mu.Unlock()

	for _, p := range active {
		change, err := p.store.Resync(ctx)
		if err != nil {
			m.logger.Warn("calendar resync", slog.String("namespace", p.ns), slog.Any("error", err))
			continue
		}
		if !change.Empty() {
			m.logger.Info("calendar resynced",
				slog.String("namespace", p.ns),
				slog.Int("added", len(change.Added)),
				slog.Int("updated", len(change.Updated)),
				slog.Int("removed", len(change.Removed)))
		}
	}
}

// Run drives the periodic sync until the context is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SyncAll(ctx)
		}
	}
}

// Active returns how many stores are currently registered.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
