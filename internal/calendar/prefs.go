package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trunkline-ops/trunkline/internal/kvstore"
	"github.com/trunkline-ops/trunkline/internal/shared"
)

// View is the calendar display mode.
type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
	ViewList  View = "list"
)

func (v View) Valid() bool {
	switch v {
	case ViewMonth, ViewWeek, ViewDay, ViewList:
		return true
	}
	return false
}

// Preferences is the per-user calendar display state, persisted under its
// own key next to the events.
type Preferences struct {
	View         View `json:"view"`
	ShowWeekends bool `json:"show_weekends"`
}

// DefaultPreferences is what a new user, or corrupt storage, resolves to.
func DefaultPreferences() Preferences {
	return Preferences{View: ViewMonth, ShowWeekends: true}
}

// PrefStore persists one user's calendar preferences.
type PrefStore struct {
	kv     kvstore.Store
	key    string
	logger *slog.Logger
}

// NewPrefStore constructs the preference store for one namespace.
func NewPrefStore(kv kvstore.Store, namespace string, logger *slog.Logger) *PrefStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefStore{
		kv:     kv,
		key:    fmt.Sprintf("calendar:%s:prefs", namespace),
		logger: logger,
	}
}

// Load returns the stored preferences, falling back to defaults when the
// key is missing or unreadable.
func (p *PrefStore) Load(ctx context.Context) Preferences {
	raw, err := p.kv.Get(ctx, p.key)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			p.logger.Warn("calendar prefs load", slog.String("key", p.key), slog.Any("error", err))
		}
		return DefaultPreferences()
	}
	var prefs Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil || !prefs.View.Valid() {
		p.logger.Warn("calendar prefs corrupt, using defaults", slog.String("key", p.key))
		return DefaultPreferences()
	}
	return prefs
}

// Save validates and persists the preferences.
func (p *PrefStore) Save(ctx context.Context, prefs Preferences) error {
	if !prefs.View.Valid() {
		return fmt.Errorf("%w: unknown calendar view %q", shared.ErrInvalidInput, prefs.View)
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("calendar: encode prefs: %w", err)
	}
	return p.kv.Set(ctx, p.key, string(raw))
}
