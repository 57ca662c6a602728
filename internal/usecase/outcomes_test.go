package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
)

type outcomeStore struct {
	recStore
	saved []models.TradeOutcome
	err   error
}

func (s *outcomeStore) SaveOutcome(_ context.Context, o models.TradeOutcome) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, o)
	return nil
}

type errCounter struct {
	nopMetrics
	kinds []string
}

func (m *errCounter) RecordError(kind string) { m.kinds = append(m.kinds, kind) }

func TestOutcomesHandlerPersistsReport(t *testing.T) {
	store := &outcomeStore{}
	h := NewOutcomesHandler("trade.outcomes", store, nopMetrics{})

	if got := h.Topic(); got != "trade.outcomes" {
		t.Fatalf("topic = %q", got)
	}

	closed := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	opened := closed.Add(-4 * time.Hour)
	msg := []byte(`{
		"symbol": "BTCUSDT", "side": "long", "regime": "breakout", "style": "swing",
		"entry": 97000, "exit": 99100, "qty": 0.01, "pnl": 21,
		"opened_at": "` + opened.Format(time.RFC3339) + `", "closed_at": "` + closed.Format(time.RFC3339) + `"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d outcomes, want 1", len(store.saved))
	}
	o := store.saved[0]
	if o.Symbol != "BTCUSDT" || o.Side != models.SideLong || o.Regime != models.RegimeBreakout || o.Style != models.StyleSwing {
		t.Fatalf("identity fields wrong: %+v", o)
	}
	if o.PnL != 21 || o.EntryPrice != 97000 || o.ExitPrice != 99100 || o.Quantity != 0.01 {
		t.Fatalf("trade fields wrong: %+v", o)
	}
	if !o.OpenedAt.Equal(opened) || !o.ClosedAt.Equal(closed) {
		t.Fatalf("times = %v / %v, want %v / %v", o.OpenedAt, o.ClosedAt, opened, closed)
	}
}

func TestOutcomesHandlerAcceptsUnixStamps(t *testing.T) {
	closed := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)

	cases := map[string]string{
		"seconds":        `1770737400`,
		"milliseconds":   `1770737400000`,
		"string seconds": `"1770737400"`,
	}
	for name, stamp := range cases {
		store := &outcomeStore{}
		h := NewOutcomesHandler("trade.outcomes", store, nopMetrics{})
		msg := []byte(`{"symbol": "ETHUSDT", "side": "short", "pnl": -3, "closed_at": ` + stamp + `}`)
		if err := h.Handle(context.Background(), msg); err != nil {
			t.Fatalf("%s: handle: %v", name, err)
		}
		if len(store.saved) != 1 {
			t.Fatalf("%s: saved %d outcomes, want 1", name, len(store.saved))
		}
		if !store.saved[0].ClosedAt.Equal(closed) {
			t.Fatalf("%s: closed_at = %v, want %v", name, store.saved[0].ClosedAt, closed)
		}
		if !store.saved[0].OpenedAt.IsZero() {
			t.Fatalf("%s: opened_at = %v, want zero for absent field", name, store.saved[0].OpenedAt)
		}
	}
}

func TestOutcomesHandlerRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"symbol": `,
		"no symbol":      `{"side": "long", "closed_at": 1770737400}`,
		"no close time":  `{"symbol": "BTCUSDT", "side": "long"}`,
		"bad close time": `{"symbol": "BTCUSDT", "closed_at": "yesterday"}`,
	}
	for name, msg := range cases {
		store := &outcomeStore{}
		m := &errCounter{}
		h := NewOutcomesHandler("trade.outcomes", store, m)
		if err := h.Handle(context.Background(), []byte(msg)); err == nil {
			t.Fatalf("%s: handle accepted %s", name, msg)
		}
		if len(store.saved) != 0 {
			t.Fatalf("%s: malformed message was saved", name)
		}
		if len(m.kinds) != 1 || m.kinds[0] != "consumer_unmarshal" {
			t.Fatalf("%s: recorded errors %v, want one consumer_unmarshal", name, m.kinds)
		}
	}
}

func TestOutcomesHandlerPropagatesStoreError(t *testing.T) {
	boom := errors.New("insert failed")
	store := &outcomeStore{err: boom}
	m := &errCounter{}
	h := NewOutcomesHandler("trade.outcomes", store, m)

	msg := []byte(`{"symbol": "BTCUSDT", "side": "long", "closed_at": 1770737400}`)
	if err := h.Handle(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want store error", err)
	}
	if len(m.kinds) != 1 || m.kinds[0] != "consumer_store" {
		t.Fatalf("recorded errors %v, want one consumer_store", m.kinds)
	}
}
