package usecase

import (
	"context"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
)

// CandleReader serves archived candle history for the HTTP API.
type CandleReader struct {
	archive drepo.CandleArchive
}

func NewCandleReader(archive drepo.CandleArchive) *CandleReader {
	return &CandleReader{archive: archive}
}

type CandleQuery struct {
	Symbol    string
	Timeframe drepo.Timeframe
	Limit     int
}

type CandleSeries struct {
	Symbol    string
	Timeframe string
	Count     int
	Candles   []models.Bar
}

func (r *CandleReader) Candles(ctx context.Context, q CandleQuery) (*CandleSeries, error) {
	if r.archive == nil {
		return nil, fmt.Errorf("candle archive disabled")
	}
	if q.Symbol == "" {
		return nil, fmt.Errorf("symbol is empty")
	}
	if !drepo.IsValidTimeframe(q.Timeframe) {
		return nil, fmt.Errorf("unknown timeframe %q", q.Timeframe)
	}
	if q.Limit <= 0 {
		q.Limit = 200
	}
	if q.Limit > 5000 {
		q.Limit = 5000
	}

	candles, err := r.archive.Candles(ctx, q.Symbol, q.Timeframe, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("read candle archive: %w", err)
	}

	return &CandleSeries{
		Symbol:    q.Symbol,
		Timeframe: string(q.Timeframe),
		Count:     len(candles),
		Candles:   candles,
	}, nil
}
