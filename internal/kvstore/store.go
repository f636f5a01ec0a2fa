// Package kvstore provides the durable key-value layer backing calendar
// data and per-user preferences.
package kvstore

import "context"

// Store persists opaque string values under namespaced keys.
// Implementations return shared.ErrNotFound for missing keys so callers can
// distinguish an absent value from an empty one.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
