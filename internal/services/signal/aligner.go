package signal

import (
	"fmt"

	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/services/indicators"
)

// Aligner runs the indicator engine over the three horizons independently
// and labels each one's trend.
type Aligner struct {
	engine *indicators.Engine
}

// NewAligner creates an aligner over the given indicator engine.
func NewAligner(engine *indicators.Engine) *Aligner { return &Aligner{engine: engine} }

// Align implements service.Aligner. Any horizon whose history does not
// cover the indicator warm-up makes the whole instrument not ready; a
// trend is never derived from truncated windows.
func (a *Aligner) Align(bars domsvc.HorizonBars) (domsvc.Alignment, error) {
	horizons := [3][]models.Bar{bars.Short, bars.Medium, bars.Long}
	labels := models.AllHorizons()
	minBars := a.engine.Windows().MinBars()

	var out domsvc.Alignment
	for i, hb := range horizons {
		if len(hb) < minBars {
			return domsvc.Alignment{}, fmt.Errorf("%s horizon has %d bars, need %d: %w",
				labels[i], len(hb), minBars, models.ErrInsufficientData)
		}
		series := a.engine.Compute(hb)
		last, ok := series.Last()
		if !ok {
			return domsvc.Alignment{}, fmt.Errorf("%s horizon still inside warm-up: %w",
				labels[i], models.ErrInsufficientData)
		}
		closePx := hb[len(hb)-1].Close
		out.Views[i] = models.HorizonView{
			Horizon: labels[i],
			Trend:   trendLabel(last, closePx),
			Close:   closePx,
			Latest:  last,
		}
		switch labels[i] {
		case models.HorizonMedium:
			out.Persistence = trendRun(series, hb)
			out.BarTime = hb[len(hb)-1].Timestamp
		case models.HorizonLong:
			out.Long = series
			out.LongCloses = closesOf(hb)
		}
	}
	return out, nil
}

// trendLabel derives a horizon's trend from the EMA pair and the close
// position relative to the SMA.
func trendLabel(set models.IndicatorSet, closePx float64) models.Trend {
	switch {
	case set.EMAFast > set.EMASlow && closePx > set.SMA:
		return models.TrendUp
	case set.EMAFast < set.EMASlow && closePx < set.SMA:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

// trendRun counts how many trailing bars carry the same label as the
// newest one. Only ready entries participate.
func trendRun(series models.IndicatorSeries, bars []models.Bar) int {
	last := len(series) - 1
	if last < 0 || !series[last].Ready {
		return 0
	}
	lastLabel := trendLabel(series[last], bars[last].Close)
	run := 0
	for i := last; i >= 0 && series[i].Ready; i-- {
		if trendLabel(series[i], bars[i].Close) != lastLabel {
			break
		}
		run++
	}
	return run
}

func closesOf(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
