package reporting_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/trunkline-ops/trunkline/internal/reporting"
	_ "github.com/trunkline-ops/trunkline/testing"
)

func newCacheFixture(t *testing.T) *reporting.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return reporting.NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newCacheFixture(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	again, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, ver, again)
}

func TestCacheBumpChangesKeys(t *testing.T) {
	cache := newCacheFixture(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "reports", "revenue", "2025-07")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "reports", "revenue", "2025-07")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache := newCacheFixture(t)
	ctx := context.Background()

	var calls atomic.Int64
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]int{"total": 248}, nil
	}

	var got map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "reports:fleet:1", &got, loader))
	require.Equal(t, 248, got["total"])
	require.Equal(t, int64(1), calls.Load())

	var again map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "reports:fleet:1", &again, loader))
	require.Equal(t, 248, again["total"])
	require.Equal(t, int64(1), calls.Load(), "second read must come from the cache")
}

func TestCacheBumpOrphansOldEntries(t *testing.T) {
	cache := newCacheFixture(t)
	ctx := context.Background()

	var calls atomic.Int64
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]int{"total": 248}, nil
	}

	key, err := cache.BuildKey(ctx, "reports", "fleet")
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &got, loader))

	require.NoError(t, cache.Bump(ctx))

	key, err = cache.BuildKey(ctx, "reports", "fleet")
	require.NoError(t, err)
	require.NoError(t, cache.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, int64(2), calls.Load(), "bumped version must force a refill")
}

func TestCacheNilIsPassThrough(t *testing.T) {
	var cache *reporting.Cache
	ctx := context.Background()

	var calls atomic.Int64
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return map[string]int{"total": 7}, nil
	}

	for i := 0; i < 2; i++ {
		var got map[string]int
		require.NoError(t, cache.FetchJSON(ctx, "reports:fleet", &got, loader))
		require.Equal(t, 7, got["total"])
	}
	require.Equal(t, int64(2), calls.Load(), "nil cache never memoises")

	require.NoError(t, cache.Bump(ctx))
	key, err := cache.BuildKey(ctx, "reports", "fleet")
	require.NoError(t, err)
	require.Equal(t, "reports:fleet", key, "nil cache keys carry no version")
}
