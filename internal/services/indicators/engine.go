package indicators

import (
	"PerpScout/internal/domain/models"
)

// Windows holds the lookback lengths for every indicator the engine runs.
type Windows struct {
	EMAFast    int
	EMASlow    int
	SMA        int
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATR        int
	BBPeriod   int
	BBStdDev   float64
}

// DefaultWindows returns the standard window set.
func DefaultWindows() Windows {
	return Windows{
		EMAFast:    9,
		EMASlow:    21,
		SMA:        20,
		RSI:        14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATR:        14,
		BBPeriod:   20,
		BBStdDev:   2.0,
	}
}

// WarmUp returns the number of leading bars whose indicator values are
// not ready. With the standard windows the MACD signal line dominates.
func (w Windows) WarmUp() int {
	warm := w.EMAFast - 1
	if v := w.EMASlow - 1; v > warm {
		warm = v
	}
	if v := w.SMA - 1; v > warm {
		warm = v
	}
	if v := w.RSI; v > warm {
		warm = v
	}
	if v := w.MACDSlow + w.MACDSignal - 2; v > warm {
		warm = v
	}
	if v := w.ATR - 1; v > warm {
		warm = v
	}
	if v := w.BBPeriod - 1; v > warm {
		warm = v
	}
	return warm
}

// MinBars returns the shortest series length that yields one ready entry.
func (w Windows) MinBars() int { return w.WarmUp() + 1 }

// Engine computes the full indicator set over one bar sequence. It is
// purely functional: no state survives between Compute calls.
type Engine struct {
	win Windows
}

// NewEngine creates an indicator engine with the given windows.
func NewEngine(win Windows) *Engine { return &Engine{win: win} }

// Windows returns the engine's window set.
func (e *Engine) Windows() Windows { return e.win }

// Compute derives one IndicatorSet per input bar. Entries before the
// warm-up boundary stay marked not ready; their values are never taken
// from truncated windows.
func (e *Engine) Compute(bars []models.Bar) models.IndicatorSeries {
	n := len(bars)
	series := make(models.IndicatorSeries, n)
	warm := e.win.WarmUp()
	if n <= warm {
		return series
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	emaFast := EMA(closes, e.win.EMAFast)
	emaSlow := EMA(closes, e.win.EMASlow)
	sma := SMA(closes, e.win.SMA)
	rsi := RSI(closes, e.win.RSI)
	macdLine, macdSignal := MACD(closes, e.win.MACDFast, e.win.MACDSlow, e.win.MACDSignal)
	atr := ATR(highs, lows, closes, e.win.ATR)
	bands := Bollinger(closes, e.win.BBPeriod, e.win.BBStdDev)

	for i := warm; i < n; i++ {
		series[i] = models.IndicatorSet{
			Ready:      true,
			EMAFast:    emaFast[i],
			EMASlow:    emaSlow[i],
			SMA:        sma[i],
			RSI:        rsi[i],
			MACDLine:   macdLine[i],
			MACDSignal: macdSignal[i],
			ATR:        atr[i],
			BBUpper:    bands.Upper[i],
			BBMid:      bands.Middle[i],
			BBLower:    bands.Lower[i],
		}
	}
	return series
}
