package bybit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	"PerpScout/internal/service/ratelimit"
	pkghttp "PerpScout/pkg/http"
)

// Config holds the REST client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64 // venue request budget, tokens per second
	Burst   float64
}

// REST implements MarketData over the Bybit v5 public market API for
// USDT-margined linear contracts.
type REST struct {
	cfg     Config
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
}

// NewREST creates a new Bybit market data client.
func NewREST(cfg Config, limiter *ratelimit.Limiter) *REST {
	return &REST{
		cfg:     cfg,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout)),
		limiter: limiter,
	}
}

type tickersResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string `json:"category"`
		List     []struct {
			Symbol      string `json:"symbol"`
			LastPrice   string `json:"lastPrice"`
			Turnover24h string `json:"turnover24h"`
		} `json:"list"`
	} `json:"result"`
}

type klineResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string     `json:"category"`
		Symbol   string     `json:"symbol"`
		List     [][]string `json:"list"`
	} `json:"result"`
}

// TopSymbols returns USDT perpetuals ordered by 24h turnover.
func (c *REST) TopSymbols(ctx context.Context, limit int) ([]models.Instrument, error) {
	if err := c.wait(ctx, "tickers"); err != nil {
		return nil, err
	}
	var resp tickersResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.cfg.BaseURL + "/v5/market/tickers",
		QueryParams: map[string][]string{"category": {"linear"}},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bybit tickers: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit tickers: retCode %d: %s", resp.RetCode, resp.RetMsg)
	}

	out := make([]models.Instrument, 0, len(resp.Result.List))
	for _, t := range resp.Result.List {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		last, _ := strconv.ParseFloat(t.LastPrice, 64)
		turn, _ := strconv.ParseFloat(t.Turnover24h, 64)
		out = append(out, models.Instrument{Symbol: t.Symbol, LastPrice: last, Turnover: turn})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Turnover != out[j].Turnover {
			return out[i].Turnover > out[j].Turnover
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Candles returns up to limit bars, oldest first.
func (c *REST) Candles(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	if err := c.wait(ctx, "kline"); err != nil {
		return nil, err
	}
	var resp klineResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.cfg.BaseURL + "/v5/market/kline",
		QueryParams: map[string][]string{
			"category": {"linear"},
			"symbol":   {symbol},
			"interval": {strconv.Itoa(tf.Minutes())},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bybit kline %s %s: %w", symbol, tf, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline %s %s: retCode %d: %s", symbol, tf, resp.RetCode, resp.RetMsg)
	}

	// the venue returns newest first
	bars := make([]models.Bar, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		bar, err := parseKlineRow(resp.Result.List[i])
		if err != nil {
			return nil, fmt.Errorf("bybit kline %s %s: %w", symbol, tf, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKlineRow(row []string) (models.Bar, error) {
	if len(row) < 6 {
		return models.Bar{}, fmt.Errorf("kline row has %d fields, need 6", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Bar{}, fmt.Errorf("parse start time %q: %w", row[0], err)
	}
	var vals [5]float64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("parse kline field %d %q: %w", i+1, row[i+1], err)
		}
		vals[i] = v
	}
	return models.Bar{
		Timestamp: time.UnixMilli(ms).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// wait blocks until the venue budget admits one more request.
func (c *REST) wait(ctx context.Context, key string) error {
	if c.limiter == nil {
		return nil
	}
	for !c.limiter.Allow("bybit:"+key, c.cfg.Burst, c.cfg.RPS) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

var _ drepo.MarketData = (*REST)(nil)
