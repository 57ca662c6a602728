package mlfilter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
)

func remoteServer(t *testing.T, probability float64, got *scoreReq) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != scorePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"probability": probability})
	}))
}

func TestRemoteFilterBoostsOnHighProbability(t *testing.T) {
	var req scoreReq
	srv := remoteServer(t, 0.9, &req)
	defer srv.Close()

	rf := NewRemoteFilter(DefaultConfig(), srv.URL, 2*time.Second)
	adj, err := rf.Evaluate(context.Background(), featuresWith(models.SideLong, bullishSet(), 102))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if adj.Veto {
		t.Fatal("probability 0.9 was vetoed")
	}
	if adj.ScoreDelta <= 0 || adj.ScoreDelta > DefaultConfig().AdjustmentCap {
		t.Fatalf("score delta = %g, want in (0, %g]", adj.ScoreDelta, DefaultConfig().AdjustmentCap)
	}
	if adj.ConfidenceDelta != adj.ScoreDelta/2 {
		t.Fatalf("confidence delta = %g, want half of score delta %g", adj.ConfidenceDelta, adj.ScoreDelta)
	}

	if req.Symbol != "BTCUSDT" || req.Side != string(models.SideLong) {
		t.Fatalf("request identity = %s/%s", req.Symbol, req.Side)
	}
	for _, key := range []string{"boll_z", "rsi_dev", "macd_mom", "ema_spread"} {
		if _, ok := req.Features[key]; !ok {
			t.Fatalf("request features missing %q: %v", key, req.Features)
		}
	}
}

func TestRemoteFilterVetoesBelowThreshold(t *testing.T) {
	srv := remoteServer(t, 0.2, nil)
	defer srv.Close()

	rf := NewRemoteFilter(DefaultConfig(), srv.URL, 2*time.Second)
	adj, err := rf.Evaluate(context.Background(), featuresWith(models.SideLong, bearishSet(), 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !adj.Veto {
		t.Fatalf("probability 0.2 passed with %+v", adj)
	}
}

func TestRemoteFilterRetriesThenRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]float64{"probability": 0.7})
	}))
	defer srv.Close()

	rf := NewRemoteFilter(DefaultConfig(), srv.URL, 2*time.Second)
	adj, err := rf.Evaluate(context.Background(), featuresWith(models.SideLong, bullishSet(), 102))
	if err != nil {
		t.Fatalf("evaluate after retry: %v", err)
	}
	if adj.Veto || adj.ScoreDelta <= 0 {
		t.Fatalf("recovered call got %+v, want boost", adj)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("server saw %d calls, want 2", n)
	}
}

func TestRemoteFilterUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close() // connection refused from the first attempt

	rf := NewRemoteFilter(DefaultConfig(), srv.URL, time.Second)
	_, err := rf.Evaluate(context.Background(), featuresWith(models.SideLong, bullishSet(), 102))
	if !errors.Is(err, models.ErrFilterUnavailable) {
		t.Fatalf("err = %v, want ErrFilterUnavailable", err)
	}
}

func TestRemoteFilterRejectsOutOfRangeProbability(t *testing.T) {
	srv := remoteServer(t, 1.5, nil)
	defer srv.Close()

	rf := NewRemoteFilter(DefaultConfig(), srv.URL, time.Second)
	_, err := rf.Evaluate(context.Background(), featuresWith(models.SideLong, bullishSet(), 102))
	if !errors.Is(err, models.ErrFilterUnavailable) {
		t.Fatalf("err = %v, want ErrFilterUnavailable", err)
	}
}
