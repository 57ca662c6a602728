package models

import "time"

// Side is the direction of a trade candidate.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Trend labels the direction of a single horizon.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Regime is the market character of an instrument.
type Regime string

const (
	RegimeMean     Regime = "mean"     // range-bound
	RegimeBreakout Regime = "breakout" // trending with volatility expansion
)

// Style is the intended holding duration of a signal.
type Style string

const (
	StyleScalp Style = "scalp"
	StyleSwing Style = "swing"
	StyleTrend Style = "trend"
)

// Horizon is one of the three time-aggregation levels bars are sampled at.
type Horizon string

const (
	HorizonShort  Horizon = "short"
	HorizonMedium Horizon = "medium"
	HorizonLong   Horizon = "long"
)

// AllHorizons lists the horizons in ascending aggregation order.
func AllHorizons() [3]Horizon {
	return [3]Horizon{HorizonShort, HorizonMedium, HorizonLong}
}

// HorizonView summarizes one horizon for one instrument at scan time: the
// trend label, the closing price and the latest post-warm-up indicator set.
type HorizonView struct {
	Horizon Horizon
	Trend   Trend
	Close   float64
	Latest  IndicatorSet
}

// TrendSet records the per-horizon trend labels behind a signal.
type TrendSet struct {
	Short  Trend
	Medium Trend
	Long   Trend
}

// Unanimous reports whether all three labels agree on a non-flat direction.
func (t TrendSet) Unanimous() bool {
	return t.Short == t.Medium && t.Medium == t.Long && t.Short != TrendFlat
}

// Signal is a scored trade candidate for one instrument. It is never
// mutated after creation; the filter stage emits an adjusted copy.
type Signal struct {
	Symbol         string
	Side           Side
	Score          float64 // 0..100
	Confidence     float64 // 0..100
	Regime         Regime
	Style          Style
	ReferencePrice float64
	ATR            float64 // medium-horizon ATR at signal time
	Trends         TrendSet
	Unanimous      bool
	BarTime        time.Time // close time of the newest medium-horizon bar
}

// Valid reports whether the signal clears both thresholds (inclusive) and
// the three-horizon unanimity requirement.
func (s Signal) Valid(minScore, minConfidence float64) bool {
	return s.Score >= minScore && s.Confidence >= minConfidence && s.Unanimous
}
