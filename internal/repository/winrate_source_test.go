package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
	svccache "PerpScout/internal/service/cache"
)

type stubWinRates struct {
	rec   models.WinRate
	err   error
	calls int
}

func (s *stubWinRates) WinRate(ctx context.Context, symbol string, regime models.Regime, style models.Style) (models.WinRate, error) {
	s.calls++
	if s.err != nil {
		return models.WinRate{}, s.err
	}
	return s.rec, nil
}

func TestCachedWinRatesHitsInnerOnce(t *testing.T) {
	inner := &stubWinRates{rec: models.WinRate{Symbol: "BTCUSDT", Regime: models.RegimeBreakout, Style: models.StyleSwing, Wins: 7, Total: 10}}
	src := NewCachedWinRates(inner, nil, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		wr, err := src.WinRate(ctx, "BTCUSDT", models.RegimeBreakout, models.StyleSwing)
		if err != nil {
			t.Fatalf("win rate: %v", err)
		}
		if wr.Wins != 7 || wr.Total != 10 {
			t.Fatalf("unexpected win rate: %+v", wr)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedWinRatesKeysByBucket(t *testing.T) {
	inner := &stubWinRates{rec: models.WinRate{Wins: 1, Total: 2}}
	src := NewCachedWinRates(inner, nil, time.Minute)

	ctx := context.Background()
	if _, err := src.WinRate(ctx, "BTCUSDT", models.RegimeBreakout, models.StyleSwing); err != nil {
		t.Fatalf("win rate: %v", err)
	}
	if _, err := src.WinRate(ctx, "BTCUSDT", models.RegimeMean, models.StyleSwing); err != nil {
		t.Fatalf("win rate: %v", err)
	}
	if _, err := src.WinRate(ctx, "ETHUSDT", models.RegimeBreakout, models.StyleSwing); err != nil {
		t.Fatalf("win rate: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("inner calls = %d, want 3 distinct buckets", inner.calls)
	}
}

func TestCachedWinRatesUsesSharedLayer(t *testing.T) {
	shared := svccache.NewTTLCache()
	warm := NewCachedWinRates(&stubWinRates{rec: models.WinRate{Symbol: "BTCUSDT", Wins: 4, Total: 5}}, shared, time.Minute)
	if _, err := warm.WinRate(context.Background(), "BTCUSDT", models.RegimeMean, models.StyleScalp); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// A second instance with a cold memory layer should be served from the
	// shared cache without touching its inner source.
	inner := &stubWinRates{err: errors.New("db down")}
	cold := NewCachedWinRates(inner, shared, time.Minute)
	wr, err := cold.WinRate(context.Background(), "BTCUSDT", models.RegimeMean, models.StyleScalp)
	if err != nil {
		t.Fatalf("cold: %v", err)
	}
	if wr.Wins != 4 || wr.Total != 5 {
		t.Fatalf("unexpected win rate from shared layer: %+v", wr)
	}
	if inner.calls != 0 {
		t.Fatalf("inner calls = %d, want 0", inner.calls)
	}
}

func TestCachedWinRatesPropagatesInnerError(t *testing.T) {
	wantErr := errors.New("db down")
	src := NewCachedWinRates(&stubWinRates{err: wantErr}, nil, time.Minute)
	if _, err := src.WinRate(context.Background(), "BTCUSDT", models.RegimeMean, models.StyleScalp); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestWinRateJSONRoundTrip(t *testing.T) {
	in := models.WinRate{Symbol: "SOLUSDT", Regime: models.RegimeBreakout, Style: models.StyleTrend, Wins: 3, Total: 9}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out models.WinRate
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestCandleSchemaCoversAllTimeframes(t *testing.T) {
	stmts := CandleSchema("perpscout")
	joined := strings.Join(stmts, "\n")
	for _, tf := range []domrepo.Timeframe{domrepo.TF15m, domrepo.TF1h, domrepo.TF4h} {
		if !strings.Contains(joined, "perpscout.candles_"+string(tf)) {
			t.Fatalf("schema missing table for %s", tf)
		}
	}
	if !strings.Contains(stmts[0], "CREATE DATABASE IF NOT EXISTS perpscout") {
		t.Fatalf("schema missing database statement: %s", stmts[0])
	}
}
