package notify

import (
	"context"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	"PerpScout/pkg/queue"
)

// DigestType is the queue message type for recommendation digests.
const DigestType = "notify.digest"

// digestEntry is the queue wire form of one recommendation. Only the
// fields the channel formatters render survive the round trip.
type digestEntry struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Regime           string  `json:"regime"`
	Style            string  `json:"style"`
	Score            float64 `json:"score"`
	Confidence       float64 `json:"confidence"`
	Entry            float64 `json:"entry"`
	TakeProfit       float64 `json:"take_profit"`
	StopLoss         float64 `json:"stop_loss"`
	PositionSize     float64 `json:"position_size"`
	MarginRequired   float64 `json:"margin_required"`
	LiquidationPrice float64 `json:"liquidation_price"`
}

type digestPayload struct {
	Entries []digestEntry `json:"entries"`
}

// Queued defers digest delivery to the job queue so a scan cycle never
// waits on a webhook.
type Queued struct {
	q queue.QueueService
}

func NewQueued(q queue.QueueService) *Queued { return &Queued{q: q} }

func (n *Queued) Notify(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	p := digestPayload{Entries: make([]digestEntry, 0, len(recs))}
	for _, rec := range recs {
		p.Entries = append(p.Entries, toEntry(rec))
	}
	if err := n.q.PublishMessage(ctx, DigestType, p); err != nil {
		return fmt.Errorf("enqueue digest: %w", err)
	}
	return nil
}

// DigestJob delivers queued digests through the wrapped notifier and
// inherits the queue's retry and dead-letter handling.
type DigestJob struct {
	inner drepo.Notifier
}

func NewDigestJob(inner drepo.Notifier) *DigestJob { return &DigestJob{inner: inner} }

func (j *DigestJob) Name() string { return "notify-digest" }

func (j *DigestJob) Type() string { return DigestType }

func (j *DigestJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[digestPayload](payload)
	if err != nil {
		return fmt.Errorf("parse digest payload: %w", err)
	}
	recs := make([]models.Recommendation, 0, len(p.Entries))
	for _, e := range p.Entries {
		recs = append(recs, fromEntry(e))
	}
	return j.inner.Notify(ctx, recs)
}

func toEntry(rec models.Recommendation) digestEntry {
	s, t := rec.Signal, rec.Structure
	return digestEntry{
		Symbol:           s.Symbol,
		Side:             string(s.Side),
		Regime:           string(s.Regime),
		Style:            string(s.Style),
		Score:            s.Score,
		Confidence:       s.Confidence,
		Entry:            t.Entry,
		TakeProfit:       t.TakeProfit,
		StopLoss:         t.StopLoss,
		PositionSize:     t.PositionSize,
		MarginRequired:   t.MarginRequired,
		LiquidationPrice: t.LiquidationPrice,
	}
}

func fromEntry(e digestEntry) models.Recommendation {
	return models.Recommendation{
		Signal: models.Signal{
			Symbol:     e.Symbol,
			Side:       models.Side(e.Side),
			Regime:     models.Regime(e.Regime),
			Style:      models.Style(e.Style),
			Score:      e.Score,
			Confidence: e.Confidence,
		},
		Structure: models.TradeStructure{
			Entry:            e.Entry,
			TakeProfit:       e.TakeProfit,
			StopLoss:         e.StopLoss,
			PositionSize:     e.PositionSize,
			MarginRequired:   e.MarginRequired,
			LiquidationPrice: e.LiquidationPrice,
		},
	}
}

var (
	_ drepo.Notifier = (*Queued)(nil)
	_ queue.Job      = (*DigestJob)(nil)
)
