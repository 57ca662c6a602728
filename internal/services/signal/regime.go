package signal

import (
	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
)

// RegimeConfig holds the tunable classification thresholds.
type RegimeConfig struct {
	BreakoutLookback    int // bars inspected for a close outside the bands
	WidthWindow         int // bars over which band width must expand
	PersistenceScalpMax int // run lengths at or below this are scalps
	PersistenceTrendMin int // run lengths at or above this are trends
}

// DefaultRegimeConfig returns the standard thresholds.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		BreakoutLookback:    5,
		WidthWindow:         10,
		PersistenceScalpMax: 3,
		PersistenceTrendMin: 12,
	}
}

// Classifier labels market regime from long-horizon volatility features
// and holding style from medium-horizon trend persistence.
type Classifier struct {
	cfg RegimeConfig
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg RegimeConfig) *Classifier { return &Classifier{cfg: cfg} }

// Classify implements service.RegimeClassifier. Breakout requires both an
// expanding band width and a recent close outside the bands; anything
// else is mean.
func (c *Classifier) Classify(a domsvc.Alignment) (models.Regime, models.Style) {
	regime := models.RegimeMean
	if c.widthExpanding(a.Long) && c.bandEscape(a.Long, a.LongCloses) {
		regime = models.RegimeBreakout
	}

	style := models.StyleSwing
	switch {
	case a.Persistence <= c.cfg.PersistenceScalpMax:
		style = models.StyleScalp
	case a.Persistence >= c.cfg.PersistenceTrendMin:
		style = models.StyleTrend
	}
	return regime, style
}

// widthExpanding compares the normalized band width now against the start
// of the trailing width window.
func (c *Classifier) widthExpanding(series models.IndicatorSeries) bool {
	n := len(series)
	if n == 0 || c.cfg.WidthWindow < 2 {
		return false
	}
	start := n - c.cfg.WidthWindow
	if start < 0 {
		start = 0
	}
	if !series[start].Ready || !series[n-1].Ready {
		return false
	}
	return bandWidth(series[n-1]) > bandWidth(series[start])
}

// bandEscape reports whether any close inside the breakout lookback
// finished outside the bands.
func (c *Classifier) bandEscape(series models.IndicatorSeries, closes []float64) bool {
	n := len(series)
	if len(closes) != n {
		return false
	}
	for i := n - 1; i >= 0 && i > n-1-c.cfg.BreakoutLookback; i-- {
		if !series[i].Ready {
			break
		}
		if closes[i] > series[i].BBUpper || closes[i] < series[i].BBLower {
			return true
		}
	}
	return false
}

func bandWidth(set models.IndicatorSet) float64 {
	if set.BBMid == 0 {
		return 0
	}
	return (set.BBUpper - set.BBLower) / set.BBMid
}
