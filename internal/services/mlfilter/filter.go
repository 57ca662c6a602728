package mlfilter

import (
	"context"
	"fmt"
	"math"

	"PerpScout/internal/domain/models"
	"PerpScout/internal/domain/repository"
	"PerpScout/internal/domain/service"
)

// Model weights for the probability estimate. History dominates when
// present; momentum terms break ties for symbols without a book yet.
const (
	wMACD    = 0.8
	wEMA     = 0.6
	wBoll    = 0.3
	wRSI     = 0.5
	wHistory = 1.2
)

// Config holds the filter's bounds.
type Config struct {
	AdjustmentCap float64 // max points the filter may move either metric
	VetoThreshold float64 // probabilities below this drop the candidate
}

// DefaultConfig returns the filter defaults.
func DefaultConfig() Config {
	return Config{
		AdjustmentCap: 10,
		VetoThreshold: 0.35,
	}
}

// NoopFilter passes every candidate through unchanged. It stands in
// whenever filtering is disabled.
type NoopFilter struct{}

// NewNoopFilter returns the pass-through filter.
func NewNoopFilter() *NoopFilter { return &NoopFilter{} }

// Evaluate returns a zero adjustment for any input.
func (*NoopFilter) Evaluate(context.Context, service.Features) (service.Adjustment, error) {
	return service.Adjustment{}, nil
}

// HistoryFilter sharpens candidates with a linear model over the
// normalized indicator deviations plus the historical win-rate for the
// candidate's symbol, regime and style. A lookup failure is returned
// to the caller, who treats the filter as unavailable and passes the
// candidate through unchanged.
type HistoryFilter struct {
	cfg     Config
	winRate repository.WinRateSource
}

// NewHistoryFilter creates a filter backed by the given win-rate source.
func NewHistoryFilter(cfg Config, winRate repository.WinRateSource) *HistoryFilter {
	return &HistoryFilter{cfg: cfg, winRate: winRate}
}

// Evaluate scores the candidate and maps the probability to bounded
// score and confidence deltas, or a veto when the estimate falls below
// the threshold.
func (h *HistoryFilter) Evaluate(ctx context.Context, f service.Features) (service.Adjustment, error) {
	wr := -1.0
	if h.winRate != nil {
		rec, err := h.winRate.WinRate(ctx, f.Signal.Symbol, f.Signal.Regime, f.Signal.Style)
		if err != nil {
			return service.Adjustment{}, fmt.Errorf("win rate lookup for %s (%v): %w",
				f.Signal.Symbol, err, models.ErrFilterUnavailable)
		}
		wr = rec.Rate()
	}
	p := h.probability(f.Signal.Side, Derive(f, wr))
	return adjustment(p, h.cfg), nil
}

// adjustment maps a win probability to bounded score and confidence
// deltas, or a veto when the estimate falls below the threshold.
func adjustment(p float64, cfg Config) service.Adjustment {
	if p < cfg.VetoThreshold {
		return service.Adjustment{Veto: true}
	}
	// 0.5 is neutral; the cap bounds both directions.
	delta := (p - 0.5) * 2 * cfg.AdjustmentCap
	return service.Adjustment{
		ScoreDelta:      delta,
		ConfidenceDelta: delta / 2,
	}
}

func (h *HistoryFilter) probability(side models.Side, v Vector) float64 {
	dir := 1.0
	if side == models.SideShort {
		dir = -1
	}
	x := dir * (wMACD*v.MACDMom + wEMA*v.EMASpread + wBoll*v.BollZ + wRSI*v.RSIDev)
	if v.WinRate >= 0 {
		x += wHistory * (v.WinRate - 0.5) * 2
	}
	return 1 / (1 + math.Exp(-x))
}

// Apply returns a copy of sig with the adjustment folded in. Both
// metrics stay within [original-bound, 100] and never drop below zero.
// The input signal is not modified.
func Apply(sig models.Signal, adj service.Adjustment, bound float64) models.Signal {
	out := sig
	out.Score = clampRange(sig.Score+adj.ScoreDelta, sig.Score-bound, 100)
	out.Confidence = clampRange(sig.Confidence+adj.ConfidenceDelta, sig.Confidence-bound, 100)
	return out
}

func clampRange(v, lo, hi float64) float64 {
	if lo < 0 {
		lo = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
