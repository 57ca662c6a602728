package ratelimit

import (
	"sync"
	"time"
)

// staleAfter is how long an untouched bucket survives a sweep. Idle
// buckets refill to capacity long before this, so dropping one never
// grants extra tokens.
const staleAfter = 10 * time.Minute

// sweepThreshold caps map growth before a sweep runs. Keys include
// client addresses, so the map would otherwise grow without bound.
const sweepThreshold = 10000

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Capacity and refill rate ride on
// each Allow call, so one limiter serves endpoints with different
// budgets.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token for key if available. Unknown keys start
// with a full bucket.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= sweepThreshold {
			l.sweep(now)
		}
		b = &bucket{tokens: capacity, last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * refillPerSec
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > staleAfter {
			delete(l.buckets, key)
		}
	}
}
