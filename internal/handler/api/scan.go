package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	models "PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
	icache "PerpScout/internal/service/cache"
	"PerpScout/internal/service/metrics"
	"PerpScout/internal/service/ratelimit"
	"PerpScout/internal/usecase"
	pkgcache "PerpScout/pkg/cache"
	xhttp "PerpScout/pkg/http"
	xlogger "PerpScout/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ScanSource exposes the most recent completed scan cycle.
type ScanSource interface {
	Latest() *models.ScanResult
}

// HealthProbe is one named dependency check run by the healthz endpoint.
type HealthProbe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ScanHandler serves the scan API over echo: the latest cycle, stored
// signal history, archived candles and the health endpoint.
type ScanHandler struct {
	source  ScanSource
	store   domrepo.SignalStore
	candles *usecase.CandleReader
	probes  []HealthProbe
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
	l       *xlogger.Logger
}

func NewScanHandler(source ScanSource) *ScanHandler {
	metrics.Register()
	return &ScanHandler{source: source, rl: ratelimit.New()}
}

// SetSignalStore enables the /api/signals history endpoint.
func (h *ScanHandler) SetSignalStore(s domrepo.SignalStore) { h.store = s }

// SetCandles enables the /api/candles endpoint.
func (h *ScanHandler) SetCandles(r *usecase.CandleReader) { h.candles = r }

func (h *ScanHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *ScanHandler) SetLogger(l *xlogger.Logger) { h.l = l }

// AddHealthProbe registers a named dependency check for /healthz.
func (h *ScanHandler) AddHealthProbe(name string, check func(ctx context.Context) error) {
	h.probes = append(h.probes, HealthProbe{Name: name, Check: check})
}

func (h *ScanHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/scan/latest", h.LatestScan)
	g.GET("/signals", h.Signals)
	g.GET("/candles", h.Candles)
	e.GET("/healthz", h.Healthz)
}

func (h *ScanHandler) LatestScan(c echo.Context) error {
	start := time.Now()
	endpoint := "scan_latest"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.LatestScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.source.Latest()
	if res == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no scan completed yet"))
	}
	return xhttp.SuccessResponse(c, newScanView(res, req.Top))
}

func (h *ScanHandler) Signals(c echo.Context) error {
	start := time.Now()
	endpoint := "signals"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, errUnavailable("signal store disabled"))
	}
	if !h.rl.Allow(c.RealIP()+":signals", 5, 2) {
		if h.l != nil {
			h.l.Warn("api.signals rate_limited", xlogger.String("remote", c.RealIP()))
		}
		return c.NoContent(http.StatusTooManyRequests)
	}
	cacheKey := pkgcache.GenerateKeyWithParams("signals", req.Symbol, req.Side, req.Limit)
	if raw, ok := h.fromCache(cacheKey, "api.signals"); ok {
		return xhttp.SuccessResponse(c, raw)
	}
	recs, err := h.store.RecentSignals(c.Request().Context(), req.Symbol, req.Side, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.signals error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	views := make([]recommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newRecommendationView(rec))
	}
	payload := &xhttp.ListDataResponse{Rows: views, Total: int64(len(views))}
	h.toCache(cacheKey, payload, 15*time.Second, "api.signals")
	return xhttp.SuccessResponse(c, payload)
}

func (h *ScanHandler) Candles(c echo.Context) error {
	start := time.Now()
	endpoint := "candles"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.candles == nil {
		return xhttp.AppErrorResponse(c, errUnavailable("candle archive disabled"))
	}
	if !h.rl.Allow(c.RealIP()+":candles", 5, 2) {
		if h.l != nil {
			h.l.Warn("api.candles rate_limited", xlogger.String("remote", c.RealIP()))
		}
		return c.NoContent(http.StatusTooManyRequests)
	}
	cacheKey := pkgcache.GenerateKeyWithParams("candles", req.Symbol, req.TF, req.N)
	if raw, ok := h.fromCache(cacheKey, "api.candles"); ok {
		return xhttp.SuccessResponse(c, raw)
	}
	res, err := h.candles.Candles(c.Request().Context(), usecase.CandleQuery{
		Symbol:    req.Symbol,
		Timeframe: domrepo.Timeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.candles error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	view := newCandlesView(res)
	h.toCache(cacheKey, view, 30*time.Second, "api.candles")
	return xhttp.SuccessResponse(c, view)
}

// Healthz bypasses the 200-always API envelope; load balancers read the
// real status code.
func (h *ScanHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	status := "ok"
	code := http.StatusOK
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			checks[p.Name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			if h.l != nil {
				h.l.Warn("healthz probe failed", xlogger.String("probe", p.Name), xlogger.Error(err))
			}
			continue
		}
		checks[p.Name] = "ok"
	}
	body := map[string]interface{}{"status": status, "checks": checks}
	if res := h.source.Latest(); res != nil {
		body["last_scan"] = res.FinishedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(code, body)
}

func (h *ScanHandler) fromCache(key, tag string) (json.RawMessage, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.l != nil {
			h.l.Warn(tag+" cache_get_error", xlogger.Error(err))
		}
		return nil, false
	}
	if !ok {
		if h.l != nil {
			h.l.Debug(tag+" cache_miss", xlogger.String("key", key))
		}
		return nil, false
	}
	if h.l != nil {
		h.l.Debug(tag+" cache_hit", xlogger.String("key", key))
	}
	return json.RawMessage(b), true
}

func (h *ScanHandler) toCache(key string, v interface{}, ttl time.Duration, tag string) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil && h.l != nil {
		h.l.Warn(tag+" cache_set_error", xlogger.Error(err))
	}
}

func errUnavailable(msg string) *xhttp.AppError {
	return xhttp.NewAppError("ERR_UNAVAILABLE", "", msg, http.StatusServiceUnavailable)
}

var _ xhttp.Handler = (*ScanHandler)(nil)
