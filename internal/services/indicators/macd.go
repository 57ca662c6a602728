package indicators

// MACD computes the moving average convergence divergence line and its
// signal line. The line is ready from index slow-1 and the signal from
// index slow+signal-2; earlier entries are zero and not meaningful. The
// signal EMA is seeded from the first ready line value, never from the
// zero-filled warm-up region.
func MACD(closes []float64, fast, slow, signal int) (line, sig []float64) {
	n := len(closes)
	line = make([]float64, n)
	sig = make([]float64, n)
	if fast <= 0 || slow <= 0 || signal <= 0 || n < slow {
		return line, sig
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	start := slow - 1
	for i := start; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}
	if n-start >= signal {
		sub := EMA(line[start:], signal)
		for i, v := range sub {
			sig[start+i] = v
		}
	}
	return line, sig
}
