package mlfilter

import (
	"gonum.org/v1/gonum/stat"

	"PerpScout/internal/domain/service"
)

// Vector is the normalized feature set the history filter scores.
// Directional components are positive when they favor a long.
type Vector struct {
	BollZ     float64 // close deviation from the band mid, in sigmas
	RSIDev    float64 // RSI deviation from neutral, scaled to [-1,1]
	MACDMom   float64 // macd histogram over ATR
	EMASpread float64 // fast-slow EMA spread over ATR
	WinRate   float64 // historical win-rate in [0,1], -1 when unknown
}

// Derive condenses the three horizon views into one vector, averaging
// each component across the horizons that can express it.
func Derive(f service.Features, winRate float64) Vector {
	boll := make([]float64, 0, len(f.Views))
	rsi := make([]float64, 0, len(f.Views))
	macd := make([]float64, 0, len(f.Views))
	ema := make([]float64, 0, len(f.Views))
	for _, v := range f.Views {
		set := v.Latest
		if !set.Ready {
			continue
		}
		if sigma := (set.BBUpper - set.BBMid) / 2; sigma > 0 {
			boll = append(boll, (v.Close-set.BBMid)/sigma)
		}
		rsi = append(rsi, (set.RSI-50)/50)
		if set.ATR > 0 {
			macd = append(macd, (set.MACDLine-set.MACDSignal)/set.ATR)
			ema = append(ema, (set.EMAFast-set.EMASlow)/set.ATR)
		}
	}
	return Vector{
		BollZ:     mean(boll),
		RSIDev:    mean(rsi),
		MACDMom:   mean(macd),
		EMASpread: mean(ema),
		WinRate:   winRate,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
