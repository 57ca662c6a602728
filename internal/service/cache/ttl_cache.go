package cache

import (
	"sync"
	"time"
)

type ttlItem struct {
	value any
	exp   time.Time
}

// TTLCache is an unbounded in-process map with per-key expiry. Expired
// entries are reaped lazily on read, which suits the small, hot key
// sets it holds (win-rate aggregates keyed by symbol).
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]ttlItem
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]ttlItem)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !item.exp.IsZero() && time.Now().After(item.exp) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.value, true
}

// Set stores a value. A non-positive ttl means the entry never expires.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = ttlItem{value: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}

var _ BytesCache = (*TTLCache)(nil)
