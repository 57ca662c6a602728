package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "PerpScout/pkg/cache"
)

// BytesCache stores opaque byte payloads under string keys with a TTL.
// Handlers use it for rendered responses, repositories for serialized
// aggregates.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// LayeredBytes exposes the two-level cache through BytesCache.
type LayeredBytes struct {
	inner pkgcache.Service
}

func NewLayeredBytes(inner pkgcache.Service) *LayeredBytes {
	return &LayeredBytes{inner: inner}
}

func (l *LayeredBytes) GetBytes(key string) ([]byte, bool, error) {
	var b []byte
	err := l.inner.Get(context.Background(), key, &b)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (l *LayeredBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	return l.inner.Set(context.Background(), key, value, ttl)
}

var _ BytesCache = (*LayeredBytes)(nil)
