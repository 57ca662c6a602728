package service

import (
	"context"
	"time"

	"PerpScout/internal/domain/models"
)

// HorizonBars is the per-horizon bar history for one instrument.
type HorizonBars struct {
	Short  []models.Bar
	Medium []models.Bar
	Long   []models.Bar
}

// Alignment is the aligner output consumed by the classifier and scorer.
// Long retains the full long-horizon indicator series for regime features;
// Persistence is the trailing run length of the medium-horizon trend label.
type Alignment struct {
	Views       [3]models.HorizonView
	Persistence int
	Long        models.IndicatorSeries
	LongCloses  []float64
	BarTime     time.Time
}

// Trends collects the three per-horizon labels in short/medium/long order.
func (a Alignment) Trends() models.TrendSet {
	return models.TrendSet{
		Short:  a.Views[0].Trend,
		Medium: a.Views[1].Trend,
		Long:   a.Views[2].Trend,
	}
}

// Aligner runs the indicator engine per horizon and labels each trend.
// It returns models.ErrInsufficientData when any horizon is still inside
// its warm-up; it never fabricates a trend from truncated windows.
type Aligner interface {
	Align(bars HorizonBars) (Alignment, error)
}

// RegimeClassifier labels market regime and holding style.
type RegimeClassifier interface {
	Classify(a Alignment) (models.Regime, models.Style)
}

// ScoreModel fuses an alignment into a scored candidate. The boolean is
// false when no directional majority exists, which is a non-signal
// outcome rather than an error.
type ScoreModel interface {
	Score(symbol string, a Alignment, regime models.Regime, style models.Style) (models.Signal, bool)
}

// Features is the input a signal filter evaluates. Filters that use
// trade history resolve it themselves from the signal's symbol, regime
// and style.
type Features struct {
	Signal models.Signal
	Views  [3]models.HorizonView
}

// Adjustment is the bounded outcome of a filter evaluation.
type Adjustment struct {
	ScoreDelta      float64
	ConfidenceDelta float64
	Veto            bool
}

// SignalFilter sharpens or vetoes a scored candidate. Implementations must
// be deterministic for identical inputs; an error means the filter could
// not run and the caller passes the candidate through unchanged.
type SignalFilter interface {
	Evaluate(ctx context.Context, f Features) (Adjustment, error)
}

// TradeStructurer converts an accepted signal into an executable structure.
type TradeStructurer interface {
	Structure(sig models.Signal, account models.AccountState) (models.TradeStructure, error)
}

// Ranker orders recommendations by (score, confidence) descending with a
// symbol tie-break for determinism.
type Ranker interface {
	Rank(recs []models.Recommendation) []models.Recommendation
}
