package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCache_RoundTripsStructs(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", sample{Name: "close", Value: 1.5}, time.Minute))

	var got sample
	require.NoError(t, mc.Get(ctx, "k", &got))
	assert.Equal(t, sample{Name: "close", Value: 1.5}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "s", "plain", time.Minute))
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "plain", s)
}

func TestMemoryCache_MissAndExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	var got sample
	assert.ErrorIs(t, mc.Get(ctx, "absent", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "short", sample{Name: "x"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.ErrorIs(t, mc.Get(ctx, "short", &got), ErrCacheMiss)

	require.NoError(t, mc.Set(ctx, "gone", "v", time.Minute))
	require.NoError(t, mc.Delete(ctx, "gone"))
	assert.ErrorIs(t, mc.Get(ctx, "gone", &got), ErrCacheMiss)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	var v string
	require.NoError(t, mc.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, mc.Set(ctx, "b", "2", time.Minute))
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", "3", time.Minute))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, "1", v)
	require.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, "3", v)
}

func TestMemoryCache_LockExpires(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	now := time.Date(2024, 5, 14, 20, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	ok, err := mc.TryLock(ctx, "backfill:BTC-USDT", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = mc.TryLock(ctx, "backfill:BTC-USDT", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_TryLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock"))
	ok, err = mc.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "norm:BTC-USDT:1H:close", GenerateKeyWithParams("norm", "BTC-USDT", "1H", "close"))
	assert.Equal(t, "norm", GenerateKeyWithParams("norm"))
}

func TestRedisCache_KeyAndForeignUnlock(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	c := newRedisCache(client, "featpipe")
	assert.Equal(t, "featpipe:norm:BTC-USDT:1H:close", c.key("norm:BTC-USDT:1H:close"))
	assert.Equal(t, "x", newRedisCache(client, "").key("x"))

	// no token held, so Unlock must not touch Redis
	assert.NoError(t, c.Unlock(context.Background(), "backfill:BTC-USDT"))
}

func TestLayeredCache_TTLFor(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	lc := NewLayeredCache(newRedisCache(client, "featpipe"), WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	assert.Equal(t, time.Minute, lc.ttlFor(0))
	assert.Equal(t, time.Minute, lc.ttlFor(-1))
	assert.Equal(t, time.Minute, lc.ttlFor(time.Hour))
	assert.Equal(t, 10*time.Second, lc.ttlFor(10*time.Second))
}
