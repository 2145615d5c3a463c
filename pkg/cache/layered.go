package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LayeredCache keeps a short-lived in-process copy (L1) of values read from
// or written to Redis (L2). Locks bypass L1.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000, MemoryTTL: time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize), WithMemoryCleanup(cfg.MemoryTTL)),
		l2:    l2,
		l1TTL: cfg.MemoryTTL,
	}
}

// ttlFor caps L1 lifetime at the configured memory TTL.
func (lc *LayeredCache) ttlFor(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}

// Set writes through to Redis before filling L1.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.l2.client.Set(ctx, lc.l2.key(key), data, expiration).Err(); err != nil {
		return err
	}
	lc.fill(key, data, lc.ttlFor(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}

	l2key := lc.l2.key(key)
	pipe := lc.l2.client.Pipeline()
	get := pipe.Get(ctx, l2key)
	ttl := pipe.PTTL(ctx, l2key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	data, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := decode(data, dest); err != nil {
		return err
	}
	// PTTL is negative for keys without expiry; ttlFor then uses the L1 cap
	lc.fill(key, data, lc.ttlFor(ttl.Val()))
	return nil
}

func (lc *LayeredCache) fill(key string, data []byte, ttl time.Duration) {
	lc.l1.mu.Lock()
	lc.l1.put(key, data, lc.l1.now().Add(ttl))
	lc.l1.mu.Unlock()
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// Close stops L1 and closes the Redis connection.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
