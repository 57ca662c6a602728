package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memEntry struct {
	value    interface{}
	expireAt time.Time
	touched  time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache is a bounded in-process cache. When full it evicts the
// least recently read key; a janitor sweeps expired entries so idle
// keys do not pin memory until the next lookup.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	maxSize int
	stop    chan struct{}
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memEntry),
		maxSize: cfg.MaxSize,
		stop:    make(chan struct{}),
	}
	go mc.janitor(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	now := time.Now()
	expireAt := now.Add(expiration)
	if expiration <= 0 {
		expireAt = now.Add(7 * 24 * time.Hour)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.entries[key]; !exists && len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}
	mc.entries[key] = &memEntry{value: value, expireAt: expireAt, touched: now}
	return nil
}

// Get loads a value into dest, which must be *string, *[]byte, or
// *interface{}. A missing or expired key is ErrCacheMiss.
func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return ErrCacheMiss
	}
	if entry.expired(now) {
		delete(mc.entries, key)
		return ErrCacheMiss
	}
	entry.touched = now

	switch d := dest.(type) {
	case *string:
		if s, ok := entry.value.(string); ok {
			*d = s
			return nil
		}
	case *[]byte:
		if b, ok := entry.value.([]byte); ok {
			*d = b
			return nil
		}
	case *interface{}:
		*d = entry.value
		return nil
	}
	return fmt.Errorf("memory cache: cannot load %T into %T", entry.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// evictOldest drops the least recently read entry. Callers hold mc.mu.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range mc.entries {
		if oldestKey == "" || entry.touched.Before(oldest) {
			oldestKey = key
			oldest = entry.touched
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for key, entry := range mc.entries {
				if entry.expired(now) {
					delete(mc.entries, key)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the janitor.
func (mc *MemoryCache) Close() error {
	close(mc.stop)
	return nil
}

var _ Service = (*MemoryCache)(nil)
