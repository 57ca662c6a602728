package models

// IndicatorSet holds the derived values for a single bar. Ready is false
// for bars inside the warm-up period; the numeric fields carry no meaning
// there and must not be read.
type IndicatorSet struct {
	Ready      bool
	EMAFast    float64
	EMASlow    float64
	SMA        float64
	RSI        float64
	MACDLine   float64
	MACDSignal float64
	ATR        float64
	BBUpper    float64
	BBMid      float64
	BBLower    float64
}

// IndicatorSeries pairs each input bar with its IndicatorSet, index for
// index. len(series) always equals len(bars) it was computed from.
type IndicatorSeries []IndicatorSet

// Last returns the final set and whether it is past warm-up.
func (s IndicatorSeries) Last() (IndicatorSet, bool) {
	if len(s) == 0 {
		return IndicatorSet{}, false
	}
	last := s[len(s)-1]
	return last, last.Ready
}

// ReadyFrom returns the index of the first post-warm-up entry, or -1 when
// the whole series is inside warm-up.
func (s IndicatorSeries) ReadyFrom() int {
	for i := range s {
		if s[i].Ready {
			return i
		}
	}
	return -1
}
