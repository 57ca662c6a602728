package middleware

import (
	"strconv"
	"time"

	applogger "PerpScout/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "perpscout_http_requests_total",
		Help: "Requests served, by templated route",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perpscout_http_request_duration_seconds",
		Help:    "Request latency, by templated route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status", "class"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "perpscout_http_in_flight_requests",
		Help: "Requests currently being handled",
	}, []string{"route", "method"})

	httpRespBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "perpscout_http_response_size_bytes",
		Help:    "Response body size",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"route", "method", "status", "class"})
)

// Metrics records request metrics keyed by the templated route path so
// raw URLs never inflate label cardinality. Slow requests and 5xx
// responses also go through the structured logger when one is given.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			httpInFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			err := next(c)

			code := c.Response().Status
			status := strconv.Itoa(code)
			class := statusClass(code)
			elapsed := time.Since(start)
			bytes := int(c.Response().Size)

			httpRequests.WithLabelValues(route, method, status).Inc()
			httpDuration.WithLabelValues(route, method, status, class).Observe(elapsed.Seconds())
			httpRespBytes.WithLabelValues(route, method, status, class).Observe(float64(bytes))
			httpInFlight.WithLabelValues(route, method).Dec()

			if l != nil && (code >= 500 || (slowThreshold > 0 && elapsed >= slowThreshold)) {
				fields := []applogger.Field{
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.Int("status", code),
					applogger.Duration("duration_ms", elapsed),
					applogger.Int("bytes", bytes),
				}
				if code >= 500 {
					l.Error("http request failed", fields...)
				} else {
					l.Warn("slow http request", fields...)
				}
			}

			return err
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
