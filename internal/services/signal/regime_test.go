package signal

import (
	"testing"

	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/services/indicators"
)

func longAlignment(bars []models.Bar) domsvc.Alignment {
	eng := indicators.NewEngine(indicators.DefaultWindows())
	series := eng.Compute(bars)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return domsvc.Alignment{Long: series, LongCloses: closes}
}

func TestClassifyBreakoutOnExpansion(t *testing.T) {
	// Forty quiet bars, then a strong impulse: band width expands and the
	// last closes escape the upper band.
	closes := make([]float64, 50)
	for i := 0; i < 40; i++ {
		closes[i] = 100
	}
	for i := 40; i < 50; i++ {
		closes[i] = 100 + 5*float64(i-39)
	}
	a := longAlignment(barsAt(closes, 2))

	regime, _ := NewClassifier(DefaultRegimeConfig()).Classify(a)
	if regime != models.RegimeBreakout {
		t.Fatalf("regime = %s, want breakout", regime)
	}
}

func TestClassifyMeanOnQuietSeries(t *testing.T) {
	a := longAlignment(flatBars(50, 100))
	regime, _ := NewClassifier(DefaultRegimeConfig()).Classify(a)
	if regime != models.RegimeMean {
		t.Fatalf("regime = %s, want mean", regime)
	}
}

func TestClassifyStyleFromPersistence(t *testing.T) {
	cfg := DefaultRegimeConfig()
	c := NewClassifier(cfg)
	cases := []struct {
		persistence int
		want        models.Style
	}{
		{0, models.StyleScalp},
		{cfg.PersistenceScalpMax, models.StyleScalp},
		{cfg.PersistenceScalpMax + 1, models.StyleSwing},
		{cfg.PersistenceTrendMin - 1, models.StyleSwing},
		{cfg.PersistenceTrendMin, models.StyleTrend},
		{cfg.PersistenceTrendMin + 10, models.StyleTrend},
	}
	for _, tc := range cases {
		a := longAlignment(flatBars(50, 100))
		a.Persistence = tc.persistence
		if _, style := c.Classify(a); style != tc.want {
			t.Fatalf("persistence %d: style = %s, want %s", tc.persistence, style, tc.want)
		}
	}
}
