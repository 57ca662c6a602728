package indicators

import "math"

// Bands holds the Bollinger band triple, aligned with the input series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes period-length bands at mult population standard
// deviations around a simple moving average. Entries before index
// period-1 are zero and not meaningful.
func Bollinger(closes []float64, period int, mult float64) Bands {
	n := len(closes)
	b := Bands{
		Upper:  make([]float64, n),
		Middle: make([]float64, n),
		Lower:  make([]float64, n),
	}
	if period <= 0 || n < period {
		return b
	}
	for i := period - 1; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += closes[j]
		}
		mean := sum / float64(period)

		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))

		b.Middle[i] = mean
		b.Upper[i] = mean + mult*sd
		b.Lower[i] = mean - mult*sd
	}
	return b
}
