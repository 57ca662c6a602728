package repository

import (
	"context"

	"PerpScout/internal/domain/models"
)

// CandleArchive keeps a durable copy of fetched bars and serves them back.
// An archive that also implements MarketData can replace the venue as the
// candle source for offline runs.
type CandleArchive interface {
	Archive(ctx context.Context, symbol string, tf Timeframe, bars []models.Bar) error
	Candles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}
