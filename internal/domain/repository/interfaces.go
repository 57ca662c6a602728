package repository

import (
	"context"

	"PerpScout/internal/domain/models"
)

// MarketData supplies the scan universe and per-horizon bar history.
type MarketData interface {
	TopSymbols(ctx context.Context, limit int) ([]models.Instrument, error)
	Candles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Bar, error)
}

// MarketStream is a live ticker feed for the current universe.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// PriceSource answers with a recent mark price when one is known.
type PriceSource interface {
	MarkPrice(symbol string) (float64, bool)
}

// PriceSink receives live mark prices from the stream collector.
type PriceSink interface {
	SetPrice(symbol string, price float64)
}

// AccountSource supplies the equity and leverage snapshot used for sizing.
type AccountSource interface {
	Account(ctx context.Context) (models.AccountState, error)
}

// SignalStore persists accepted recommendations and closed trades.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	SaveRecommendations(ctx context.Context, recs []models.Recommendation) error
	RecentSignals(ctx context.Context, symbol, side string, limit int) ([]models.Recommendation, error)
	SaveOutcome(ctx context.Context, o models.TradeOutcome) error
	Health(ctx context.Context) error // ping
	Close() error
}

// WinRateSource answers historical win-rates for the signal filter.
type WinRateSource interface {
	WinRate(ctx context.Context, symbol string, regime models.Regime, style models.Style) (models.WinRate, error)
}

// Publisher emits accepted recommendations to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec models.Recommendation) error
	PublishBatch(ctx context.Context, recs []models.Recommendation) error
	Close() error
}

// Notifier posts a human-readable digest of top recommendations.
type Notifier interface {
	Notify(ctx context.Context, recs []models.Recommendation) error
}

// Metrics records operational counters for the scan pipeline.
type Metrics interface {
	RecordCycle(seconds float64, universe, accepted int)
	RecordSkip(reason string)
	RecordSignal(symbol, side string, score float64)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
