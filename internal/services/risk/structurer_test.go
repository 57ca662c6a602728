package risk

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"PerpScout/internal/domain/models"
)

func longSignal(price, atr float64) models.Signal {
	return models.Signal{
		Symbol:         "BTCUSDT",
		Side:           models.SideLong,
		Score:          90,
		Confidence:     85,
		ReferencePrice: price,
		ATR:            atr,
		Unanimous:      true,
	}
}

func TestStructureKnownValuesLong(t *testing.T) {
	s := NewStructurer(DefaultConfig())
	ts, err := s.Structure(longSignal(100, 1), models.AccountState{Equity: 1000, Leverage: 20})
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"entry", ts.Entry, 100},
		{"stop_loss", ts.StopLoss, 98.5},
		{"take_profit", ts.TakeProfit, 103},
		{"trailing_stop", ts.TrailingStop, 99},
		{"trail_activation", ts.TrailActivation, 101.5},
		{"position_size", ts.PositionSize, 7.5},
		{"margin_required", ts.MarginRequired, 37.5},
		{"liquidation", ts.LiquidationPrice, 95.5},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestStructureShortMirror(t *testing.T) {
	s := NewStructurer(DefaultConfig())
	sig := longSignal(100, 1)
	sig.Side = models.SideShort
	ts, err := s.Structure(sig, models.AccountState{Equity: 1000, Leverage: 20})
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	if ts.StopLoss != 101.5 || ts.TakeProfit != 97 {
		t.Fatalf("short levels sl=%v tp=%v, want 101.5/97", ts.StopLoss, ts.TakeProfit)
	}
	if ts.TrailingStop != 101 || ts.TrailActivation != 98.5 {
		t.Fatalf("short trail=%v activation=%v, want 101/98.5", ts.TrailingStop, ts.TrailActivation)
	}
	if math.Abs(ts.LiquidationPrice-104.5) > 1e-9 {
		t.Fatalf("short liquidation = %v, want 104.5", ts.LiquidationPrice)
	}
	if !(ts.TakeProfit < ts.Entry && ts.Entry < ts.StopLoss) {
		t.Fatalf("short ordering violated: %v < %v < %v", ts.TakeProfit, ts.Entry, ts.StopLoss)
	}
}

func TestStructureOrderingInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	account := models.AccountState{Equity: 5000, Leverage: 10}
	successes := 0

	for i := 0; i < 1000; i++ {
		cfg := DefaultConfig()
		cfg.StopATR = 0.5 + rng.Float64()*2.5
		cfg.TakeATR = 1 + rng.Float64()*5
		cfg.TrailATR = 0.1 + rng.Float64()*cfg.StopATR
		cfg.TrailActivation = 0.1 + rng.Float64()*0.8
		s := NewStructurer(cfg)

		entry := 0.01 + rng.Float64()*50000
		atr := entry * (1e-5 + rng.Float64()*0.15)
		sig := longSignal(entry, atr)
		if rng.Intn(2) == 1 {
			sig.Side = models.SideShort
		}

		ts, err := s.Structure(sig, account)
		if err != nil {
			continue // degenerate combination, correctly refused
		}
		successes++

		if ts.StopLoss <= 0 || ts.TakeProfit <= 0 {
			t.Fatalf("case %d: non-positive level sl=%v tp=%v", i, ts.StopLoss, ts.TakeProfit)
		}
		switch sig.Side {
		case models.SideLong:
			if !(ts.StopLoss < ts.Entry && ts.Entry < ts.TakeProfit) {
				t.Fatalf("case %d: long ordering violated sl=%v entry=%v tp=%v", i, ts.StopLoss, ts.Entry, ts.TakeProfit)
			}
			if !(ts.Entry < ts.TrailActivation && ts.TrailActivation < ts.TakeProfit) {
				t.Fatalf("case %d: long activation %v not between entry %v and tp %v", i, ts.TrailActivation, ts.Entry, ts.TakeProfit)
			}
		case models.SideShort:
			if !(ts.TakeProfit < ts.Entry && ts.Entry < ts.StopLoss) {
				t.Fatalf("case %d: short ordering violated tp=%v entry=%v sl=%v", i, ts.TakeProfit, ts.Entry, ts.StopLoss)
			}
			if !(ts.TakeProfit < ts.TrailActivation && ts.TrailActivation < ts.Entry) {
				t.Fatalf("case %d: short activation %v not between tp %v and entry %v", i, ts.TrailActivation, ts.TakeProfit, ts.Entry)
			}
		}
	}
	if successes < 500 {
		t.Fatalf("only %d/1000 cases structured, generator too degenerate", successes)
	}
}

func TestStructureInvalidAccountState(t *testing.T) {
	s := NewStructurer(DefaultConfig())
	cases := []models.AccountState{
		{Equity: 0, Leverage: 20},
		{Equity: -100, Leverage: 20},
		{Equity: 1000, Leverage: 0},
		{Equity: 1000, Leverage: -3},
	}
	for _, account := range cases {
		_, err := s.Structure(longSignal(100, 1), account)
		if err == nil {
			t.Fatalf("account %+v: expected error", account)
		}
		if !errors.Is(err, models.ErrInvalidAccountState) {
			t.Fatalf("account %+v: error %v does not wrap ErrInvalidAccountState", account, err)
		}
	}
}

func TestStructureRoundsToSixDecimals(t *testing.T) {
	s := NewStructurer(DefaultConfig())
	ts, err := s.Structure(longSignal(7, 0.1), models.AccountState{Equity: 1000, Leverage: 20})
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	// 1000 * 0.75 / 7 = 107.142857142857... rounds at the sixth place.
	if ts.PositionSize != 107.142857 {
		t.Fatalf("position size = %v, want 107.142857", ts.PositionSize)
	}
}

func TestStructureDeterminism(t *testing.T) {
	s := NewStructurer(DefaultConfig())
	account := models.AccountState{Equity: 1234.5678, Leverage: 20}
	sig := longSignal(23456.789, 123.456)

	first, err1 := s.Structure(sig, account)
	second, err2 := s.Structure(sig, account)
	if err1 != nil || err2 != nil {
		t.Fatalf("structure: %v / %v", err1, err2)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different structures: %+v vs %+v", first, second)
	}
}
