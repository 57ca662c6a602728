package cache

import "time"

// MarkPrices is a TTL view over the latest streamed price per symbol.
// A price older than the TTL is treated as unknown, so consumers fall
// back to bar closes instead of acting on a stale quote.
type MarkPrices struct {
	ttl   time.Duration
	cache *TTLCache
}

func NewMarkPrices(ttl time.Duration) *MarkPrices {
	return &MarkPrices{ttl: ttl, cache: NewTTLCache()}
}

func (m *MarkPrices) SetPrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	m.cache.Set("mark:"+symbol, price, m.ttl)
}

func (m *MarkPrices) MarkPrice(symbol string) (float64, bool) {
	v, ok := m.cache.Get("mark:" + symbol)
	if !ok {
		return 0, false
	}
	px, ok := v.(float64)
	return px, ok && px > 0
}
