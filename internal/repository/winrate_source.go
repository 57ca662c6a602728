package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
	svccache "PerpScout/internal/service/cache"
	pkgcache "PerpScout/pkg/cache"
)

// PGWinRates aggregates closed trades into per-(symbol, regime, style)
// win-rates.
type PGWinRates struct {
	pool *pgxpool.Pool
}

func NewPGWinRates(pool *pgxpool.Pool) *PGWinRates {
	return &PGWinRates{pool: pool}
}

func (s *PGWinRates) WinRate(ctx context.Context, symbol string, regime models.Regime, style models.Style) (models.WinRate, error) {
	wr := models.WinRate{Symbol: symbol, Regime: regime, Style: style}
	err := s.pool.QueryRow(ctx, `
		select count(*) filter (where pnl > 0), count(*)
		from trades
		where symbol = $1 and regime = $2 and style = $3
	`, symbol, string(regime), string(style)).Scan(&wr.Wins, &wr.Total)
	if err != nil {
		return wr, fmt.Errorf("query win rate: %w", err)
	}
	return wr, nil
}

// CachedWinRates layers an in-process TTL cache and an optional shared
// bytes cache (Redis) in front of another source. Shared-cache errors are
// swallowed; the database stays the source of truth.
type CachedWinRates struct {
	inner  domrepo.WinRateSource
	mem    *svccache.TTLCache
	shared svccache.BytesCache
	ttl    time.Duration
}

func NewCachedWinRates(inner domrepo.WinRateSource, shared svccache.BytesCache, ttl time.Duration) *CachedWinRates {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedWinRates{inner: inner, mem: svccache.NewTTLCache(), shared: shared, ttl: ttl}
}

func (c *CachedWinRates) WinRate(ctx context.Context, symbol string, regime models.Regime, style models.Style) (models.WinRate, error) {
	key := pkgcache.GenerateKeyWithParams("winrate", symbol, regime, style)

	if v, ok := c.mem.Get(key); ok {
		if wr, ok2 := v.(models.WinRate); ok2 {
			return wr, nil
		}
	}
	if c.shared != nil {
		if b, ok, err := c.shared.GetBytes(key); err == nil && ok {
			var wr models.WinRate
			if err := json.Unmarshal(b, &wr); err == nil {
				c.mem.Set(key, wr, c.ttl)
				return wr, nil
			}
		}
	}

	wr, err := c.inner.WinRate(ctx, symbol, regime, style)
	if err != nil {
		return wr, err
	}
	c.mem.Set(key, wr, c.ttl)
	if c.shared != nil {
		if b, err := json.Marshal(wr); err == nil {
			_ = c.shared.SetBytes(key, b, c.ttl)
		}
	}
	return wr, nil
}

var (
	_ domrepo.WinRateSource = (*PGWinRates)(nil)
	_ domrepo.WinRateSource = (*CachedWinRates)(nil)
)
