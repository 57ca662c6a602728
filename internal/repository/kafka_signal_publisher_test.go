package repository

import (
	"testing"
	"time"

	"PerpScout/internal/domain/models"
)

func TestSignalPayloadFields(t *testing.T) {
	rec := models.Recommendation{
		Signal: models.Signal{
			Symbol:         "BTCUSDT",
			Side:           models.SideLong,
			Score:          82.5,
			Confidence:     90,
			Regime:         models.RegimeBreakout,
			Style:          models.StyleSwing,
			ReferencePrice: 97000.5,
			ATR:            1200,
			BarTime:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Structure: models.TradeStructure{
			Entry:            97000.5,
			TakeProfit:       99500,
			StopLoss:         95800,
			TrailingStop:     96400,
			TrailActivation:  98200,
			PositionSize:     0.01,
			MarginRequired:   48.5,
			LiquidationPrice: 92150,
			Leverage:         20,
		},
	}

	got := signalPayload(rec)

	if got["symbol"] != "BTCUSDT" || got["side"] != "long" {
		t.Fatalf("identity fields wrong: %v %v", got["symbol"], got["side"])
	}
	if got["regime"] != "breakout" || got["style"] != "swing" {
		t.Fatalf("classification fields wrong: %v %v", got["regime"], got["style"])
	}
	if got["score"] != 82.5 || got["confidence"] != 90.0 {
		t.Fatalf("metric fields wrong: %v %v", got["score"], got["confidence"])
	}
	if got["entry"] != 97000.5 || got["take_profit"] != 99500.0 || got["stop_loss"] != 95800.0 {
		t.Fatalf("level fields wrong: %v %v %v", got["entry"], got["take_profit"], got["stop_loss"])
	}
	if got["bar_time"] != "2025-06-01T12:00:00Z" {
		t.Fatalf("bar_time = %v", got["bar_time"])
	}
	wantKeys := []string{
		"symbol", "side", "regime", "style", "score", "confidence",
		"reference_price", "atr", "entry", "take_profit", "stop_loss",
		"trailing_stop", "trail_activation", "position_size",
		"margin_required", "liquidation_price", "leverage", "bar_time",
	}
	for _, k := range wantKeys {
		if _, ok := got[k]; !ok {
			t.Fatalf("payload missing key %q", k)
		}
	}
	if len(got) != len(wantKeys) {
		t.Fatalf("payload has %d keys, want %d", len(got), len(wantKeys))
	}
}
