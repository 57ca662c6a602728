package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	pkgkafka "PerpScout/pkg/kafka"
	"PerpScout/pkg/util"
)

// OutcomesHandler consumes closed-trade reports and persists them, so
// win-rates reflect how past signals actually resolved.
type OutcomesHandler struct {
	topic   string
	store   drepo.SignalStore
	metrics drepo.Metrics
}

func NewOutcomesHandler(topic string, store drepo.SignalStore, metrics drepo.Metrics) *OutcomesHandler {
	return &OutcomesHandler{topic: topic, store: store, metrics: metrics}
}

func (h *OutcomesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, side, regime, style, entry, exit, qty, pnl, opened_at, closed_at}
// Timestamps arrive as RFC3339 strings or unix integers depending on
// the reporting system; both forms are accepted.
func (h *OutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol   string          `json:"symbol"`
		Side     string          `json:"side"`
		Regime   string          `json:"regime"`
		Style    string          `json:"style"`
		Entry    float64         `json:"entry"`
		Exit     float64         `json:"exit"`
		Qty      float64         `json:"qty"`
		PnL      float64         `json:"pnl"`
		OpenedAt json.RawMessage `json:"opened_at"`
		ClosedAt json.RawMessage `json:"closed_at"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.Symbol == "" {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("outcome without symbol")
	}
	closed, ok := outcomeTime(m.ClosedAt)
	if !ok {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("outcome for %s without close time", m.Symbol)
	}
	opened, _ := outcomeTime(m.OpenedAt)

	// E2E latency from close time to now (approx)
	h.metrics.RecordLatency("outcome_e2e_seconds", time.Since(closed).Seconds())

	start := time.Now()
	err := h.store.SaveOutcome(ctx, models.TradeOutcome{
		Symbol:     m.Symbol,
		Side:       models.Side(m.Side),
		Regime:     models.Regime(m.Regime),
		Style:      models.Style(m.Style),
		EntryPrice: m.Entry,
		ExitPrice:  m.Exit,
		Quantity:   m.Qty,
		PnL:        m.PnL,
		OpenedAt:   opened.UTC(),
		ClosedAt:   closed.UTC(),
	})
	h.metrics.RecordLatency("outcome_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

// outcomeTime accepts a JSON string (RFC3339 or unix digits) or a JSON
// number (unix seconds or milliseconds).
func outcomeTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return util.ParseTime(s)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return util.UnixAuto(n), true
	}
	return time.Time{}, false
}

var _ pkgkafka.MessageHandler = (*OutcomesHandler)(nil)
