package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "dash:")
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "calendar:u1:events", `[{"id":1}]`))

	got, err := store.Get(ctx, "calendar:u1:events")
	require.NoError(t, err)
	require.Equal(t, `[{"id":1}]`, got)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "calendar:u1:events")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRedisStoreOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "one"))
	require.NoError(t, store.Set(ctx, "k", "two"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "two", got)
}

func TestRedisStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, shared.ErrNotFound)

	// deleting again is a no-op
	require.NoError(t, store.Delete(ctx, "k"))
}
