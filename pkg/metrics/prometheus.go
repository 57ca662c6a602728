package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the Prometheus-backed implementation of the domain
// Metrics interface. Collectors register on the default registry.
type Recorder struct {
	cyclesTotal   prometheus.Counter
	cycleDuration prometheus.Histogram
	universeSize  prometheus.Gauge
	acceptedLast  prometheus.Gauge
	skipsTotal    *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	signalScore   *prometheus.GaugeVec
	lastPrice     *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "perpscout_scan_cycles_total",
				Help: "Total number of completed scan cycles",
			},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "perpscout_scan_cycle_duration_seconds",
				Help:    "Duration of a full scan cycle in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		universeSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "perpscout_scan_universe_size",
				Help: "Instruments considered in the last cycle",
			},
		),
		acceptedLast: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "perpscout_scan_accepted",
				Help: "Recommendations produced by the last cycle",
			},
		),
		skipsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpscout_skips_total",
				Help: "Instruments skipped, by reason",
			},
			[]string{"reason"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpscout_signals_total",
				Help: "Accepted signals, by symbol and side",
			},
			[]string{"symbol", "side"},
		),
		signalScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "perpscout_signal_score",
				Help: "Score of the latest accepted signal per symbol and side",
			},
			[]string{"symbol", "side"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "perpscout_last_price",
				Help: "Last streamed price for a symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perpscout_errors_total",
				Help: "Errors by failure kind",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perpscout_operation_duration_seconds",
				Help:    "Latency of named internal operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one finished scan cycle.
func (r *Recorder) RecordCycle(seconds float64, universe, accepted int) {
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(seconds)
	r.universeSize.Set(float64(universe))
	r.acceptedLast.Set(float64(accepted))
}

// RecordSkip records a skipped instrument.
func (r *Recorder) RecordSkip(reason string) {
	r.skipsTotal.WithLabelValues(reason).Inc()
}

// RecordSignal records an accepted signal.
func (r *Recorder) RecordSignal(symbol, side string, score float64) {
	r.signalsTotal.WithLabelValues(symbol, side).Inc()
	r.signalScore.WithLabelValues(symbol, side).Set(score)
}

// RecordLastPrice updates the last streamed price gauge for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordError counts one failure of the given kind.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency observes how long a named operation took.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
