package notify

import (
	"context"
	"fmt"
	"strconv"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
)

// Multi fans a digest out to every configured channel. A failed
// channel does not stop the others.
type Multi struct {
	channels []drepo.Notifier
}

func NewMulti(channels ...drepo.Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Notify(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	var lastErr error
	for _, ch := range m.channels {
		if ch == nil {
			continue
		}
		if err := ch.Notify(ctx, recs); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func formatHTML(rank int, rec models.Recommendation) string {
	s, t := rec.Signal, rec.Structure
	return fmt.Sprintf(
		"📡 <b>Signal #%d</b>: <code>%s</code>\n"+
			"Side: <code>%s</code> | Style: <code>%s</code> | Regime: <code>%s</code>\n"+
			"Entry: <code>%s</code> | TP: <code>%s</code> | SL: <code>%s</code>\n"+
			"Score: <code>%.0f</code> | Confidence: <code>%.0f</code>\n"+
			"Size: <code>%s</code> | Margin: <code>%s</code> | Liq: <code>%s</code>",
		rank, s.Symbol, s.Side, s.Style, s.Regime,
		compact(t.Entry), compact(t.TakeProfit), compact(t.StopLoss),
		s.Score, s.Confidence,
		compact(t.PositionSize), compact(t.MarginRequired), compact(t.LiquidationPrice))
}

func formatMarkdown(rank int, rec models.Recommendation) string {
	s, t := rec.Signal, rec.Structure
	return fmt.Sprintf(
		"📡 **Signal #%d**: `%s`\n"+
			"Side: `%s` | Style: `%s` | Regime: `%s`\n"+
			"Entry: `%s` | TP: `%s` | SL: `%s`\n"+
			"Score: `%.0f` | Confidence: `%.0f`\n"+
			"Size: `%s` | Margin: `%s` | Liq: `%s`",
		rank, s.Symbol, s.Side, s.Style, s.Regime,
		compact(t.Entry), compact(t.TakeProfit), compact(t.StopLoss),
		s.Score, s.Confidence,
		compact(t.PositionSize), compact(t.MarginRequired), compact(t.LiquidationPrice))
}

func compact(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
