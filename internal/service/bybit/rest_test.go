package bybit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	drepo "PerpScout/internal/domain/repository"
)

func newTestREST(t *testing.T, handler http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewREST(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
}

func TestTopSymbolsFiltersAndRanks(t *testing.T) {
	body := `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
		{"symbol":"ETHUSDT","lastPrice":"3500.5","turnover24h":"2000000"},
		{"symbol":"BTCUSD","lastPrice":"97000","turnover24h":"9000000"},
		{"symbol":"BTCUSDT","lastPrice":"97000.1","turnover24h":"5000000"},
		{"symbol":"SOLUSDT","lastPrice":"150","turnover24h":"3000000"}]}}`
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v5/market/tickers") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "linear" {
			t.Errorf("category = %q, want linear", got)
		}
		_, _ = w.Write([]byte(body))
	})

	got, err := c.TopSymbols(context.Background(), 2)
	if err != nil {
		t.Fatalf("top symbols: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instruments, want 2", len(got))
	}
	if got[0].Symbol != "BTCUSDT" || got[1].Symbol != "SOLUSDT" {
		t.Fatalf("order = %s, %s; want BTCUSDT, SOLUSDT", got[0].Symbol, got[1].Symbol)
	}
	if got[0].Turnover != 5000000 || got[0].LastPrice != 97000.1 {
		t.Fatalf("parsed instrument = %+v", got[0])
	}
}

func TestCandlesOldestFirst(t *testing.T) {
	// the venue lists newest first
	body := `{"retCode":0,"retMsg":"OK","result":{"category":"linear","symbol":"BTCUSDT","list":[
		["1717203600000","101","103","100","102","42","4284"],
		["1717200000000","100","102","99","101","40","4040"]]}}`
	c := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "60" || q.Get("limit") != "200" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(body))
	})

	bars, err := c.Candles(context.Background(), "BTCUSDT", drepo.TF1h, 200)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Timestamp.Before(bars[1].Timestamp) {
		t.Fatalf("bars not oldest first: %v then %v", bars[0].Timestamp, bars[1].Timestamp)
	}
	first := bars[0]
	if first.Open != 100 || first.High != 102 || first.Low != 99 || first.Close != 101 || first.Volume != 40 {
		t.Fatalf("parsed bar = %+v", first)
	}
	if first.Timestamp != time.UnixMilli(1717200000000).UTC() {
		t.Fatalf("timestamp = %v", first.Timestamp)
	}
}

func TestCandlesVenueError(t *testing.T) {
	c := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	})

	_, err := c.Candles(context.Background(), "BTCUSDT", drepo.TF15m, 200)
	if err == nil || !strings.Contains(err.Error(), "params error") {
		t.Fatalf("err = %v, want venue retMsg surfaced", err)
	}
}

func TestCandlesMalformedRow(t *testing.T) {
	body := `{"retCode":0,"retMsg":"OK","result":{"category":"linear","symbol":"BTCUSDT","list":[
		["1717200000000","100","102","bogus","101","40","4040"]]}}`
	c := newTestREST(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	if _, err := c.Candles(context.Background(), "BTCUSDT", drepo.TF1h, 200); err == nil {
		t.Fatal("malformed kline row produced no error")
	}
}
