package cache

import (
	"context"
	"time"
)

// LayeredCache reads through an in-process layer before Redis. Hits
// served from memory skip the network entirely; Redis hits are
// promoted so repeat lookups stay local.
type LayeredCache struct {
	memory *MemoryCache
	redis  *RedisCache
	memTTL time.Duration
}

// NewLayeredCache combines a memory front with a Redis back. The
// memory copy lives at most cfg.MemoryTTL so it cannot outlive the
// authoritative Redis entry by much.
func NewLayeredCache(redis *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memory: NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis:  redis,
		memTTL: cfg.MemoryTTL,
	}
}

// Set writes through to both layers.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redis.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	memTTL := lc.memTTL
	if expiration > 0 && expiration < memTTL {
		memTTL = expiration
	}
	return lc.memory.Set(ctx, key, value, memTTL)
}

// Get tries memory first, then Redis. A Redis hit is promoted into
// memory as a plain value, never as the caller's pointer.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memory.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.redis.Get(ctx, key, dest); err != nil {
		return err
	}

	switch d := dest.(type) {
	case *string:
		_ = lc.memory.Set(ctx, key, *d, lc.memTTL)
	case *[]byte:
		promoted := make([]byte, len(*d))
		copy(promoted, *d)
		_ = lc.memory.Set(ctx, key, promoted, lc.memTTL)
	}
	return nil
}

// Delete removes the key from both layers.
func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	if err := lc.memory.Delete(ctx, keys...); err != nil {
		return err
	}
	return lc.redis.Delete(ctx, keys...)
}

// Exists asks Redis, the authoritative layer.
func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.redis.Exists(ctx, keys...)
}

// Close stops the memory janitor. The Redis client is shared and
// closed by its owner.
func (lc *LayeredCache) Close() error {
	return lc.memory.Close()
}

var _ Service = (*LayeredCache)(nil)
