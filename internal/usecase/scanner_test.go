package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/services/indicators"
	"PerpScout/internal/services/risk"
	"PerpScout/internal/services/signal"
)

type stubMarket struct {
	instruments []models.Instrument
	series      map[string]map[drepo.Timeframe][]models.Bar
	err         error
}

func (m *stubMarket) TopSymbols(_ context.Context, limit int) ([]models.Instrument, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && limit < len(m.instruments) {
		return m.instruments[:limit], nil
	}
	return m.instruments, nil
}

func (m *stubMarket) Candles(_ context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	if m.err != nil {
		return nil, m.err
	}
	bars, ok := m.series[symbol][tf]
	if !ok {
		return nil, fmt.Errorf("no series for %s %s", symbol, tf)
	}
	if limit > 0 && limit < len(bars) {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

type stubAccount struct {
	st  models.AccountState
	err error
}

func (a stubAccount) Account(context.Context) (models.AccountState, error) { return a.st, a.err }

type stubFilter struct {
	adj    domsvc.Adjustment
	err    error
	called int
}

func (f *stubFilter) Evaluate(context.Context, domsvc.Features) (domsvc.Adjustment, error) {
	f.called++
	return f.adj, f.err
}

type stubScore struct {
	sig models.Signal
	ok  bool
}

func (s stubScore) Score(string, domsvc.Alignment, models.Regime, models.Style) (models.Signal, bool) {
	return s.sig, s.ok
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle(float64, int, int)        {}
func (nopMetrics) RecordSkip(string)                    {}
func (nopMetrics) RecordSignal(string, string, float64) {}
func (nopMetrics) RecordLastPrice(string, float64)      {}
func (nopMetrics) RecordError(string)                   {}
func (nopMetrics) RecordLatency(string, float64)        {}

func hourlyBars(closes []float64, volume float64) []models.Bar {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		o := prev
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      o,
			High:      math.Max(o, c) + 0.5,
			Low:       math.Min(o, c) - 0.5,
			Close:     c,
			Volume:    volume,
		}
		prev = c
	}
	return bars
}

// risingCloses climbs two steps forward, half a step back, keeping RSI
// inside the chop gate while the trend stays up.
func risingCloses(n int, start float64) []float64 {
	out := make([]float64, n)
	px := start
	for i := 0; i < n; i++ {
		if i%3 == 2 {
			px -= 1.5
		} else {
			px += 2
		}
		out[i] = px
	}
	return out
}

func fallingCloses(n int, start float64) []float64 {
	out := make([]float64, n)
	px := start
	for i := 0; i < n; i++ {
		if i%3 == 2 {
			px += 1.5
		} else {
			px -= 2
		}
		out[i] = px
	}
	return out
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func uniformSeries(bars []models.Bar) map[drepo.Timeframe][]models.Bar {
	return map[drepo.Timeframe][]models.Bar{
		drepo.TF15m: bars,
		drepo.TF1h:  bars,
		drepo.TF4h:  bars,
	}
}

func testScannerConfig() ScannerConfig {
	return ScannerConfig{
		Short:         drepo.TF15m,
		Medium:        drepo.TF1h,
		Long:          drepo.TF4h,
		CandleLimit:   60,
		MinVolume:     1000,
		MinATRPct:     0.001,
		RSILow:        20,
		RSIHigh:       80,
		MinScore:      60,
		MinConfidence: 70,
		AdjustmentCap: 10,
	}
}

func newRealScanner(cfg ScannerConfig, market drepo.MarketData, filter domsvc.SignalFilter, account drepo.AccountSource) *Scanner {
	eng := indicators.NewEngine(indicators.DefaultWindows())
	return NewScanner(cfg, market, nil, account,
		signal.NewAligner(eng),
		signal.NewClassifier(signal.DefaultRegimeConfig()),
		signal.NewScorer(signal.DefaultScoreConfig()),
		filter,
		risk.NewStructurer(risk.DefaultConfig()),
		nopMetrics{}, nil)
}

func newStubScanner(cfg ScannerConfig, market drepo.MarketData, score domsvc.ScoreModel, filter domsvc.SignalFilter) *Scanner {
	eng := indicators.NewEngine(indicators.DefaultWindows())
	return NewScanner(cfg, market, nil, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}},
		signal.NewAligner(eng),
		signal.NewClassifier(signal.DefaultRegimeConfig()),
		score,
		filter,
		risk.NewStructurer(risk.DefaultConfig()),
		nopMetrics{}, nil)
}

func trendingMarket(symbol string) *stubMarket {
	return &stubMarket{
		instruments: []models.Instrument{{Symbol: symbol, LastPrice: 150, Turnover: 1e9}},
		series: map[string]map[drepo.Timeframe][]models.Bar{
			symbol: uniformSeries(hourlyBars(risingCloses(60, 100), 5000)),
		},
	}
}

func validSig(score, conf float64) models.Signal {
	return models.Signal{
		Symbol:         "BTCUSDT",
		Side:           models.SideLong,
		Score:          score,
		Confidence:     conf,
		Regime:         models.RegimeBreakout,
		Style:          models.StyleTrend,
		ReferencePrice: 100,
		ATR:            1,
		Trends:         models.TrendSet{Short: models.TrendUp, Medium: models.TrendUp, Long: models.TrendUp},
		Unanimous:      true,
	}
}

func TestScanAcceptsAlignedTrend(t *testing.T) {
	market := trendingMarket("BTCUSDT")
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	rec, skip, err := s.Scan(context.Background(), "BTCUSDT")
	if err != nil || skip != "" {
		t.Fatalf("scan skipped: reason=%q err=%v", skip, err)
	}
	sig := rec.Signal
	if sig.Side != models.SideLong {
		t.Fatalf("side = %s, want long", sig.Side)
	}
	if !sig.Valid(60, 70) {
		t.Fatalf("signal invalid: score=%g confidence=%g unanimous=%v", sig.Score, sig.Confidence, sig.Unanimous)
	}
	ts := rec.Structure
	if !(ts.StopLoss < ts.Entry && ts.Entry < ts.TakeProfit) {
		t.Fatalf("levels out of order: sl=%g entry=%g tp=%g", ts.StopLoss, ts.Entry, ts.TakeProfit)
	}
	if ts.PositionSize <= 0 || ts.MarginRequired <= 0 {
		t.Fatalf("degenerate sizing: size=%g margin=%g", ts.PositionSize, ts.MarginRequired)
	}
}

func TestScanSkipsMarketDataError(t *testing.T) {
	market := &stubMarket{err: errors.New("503 from venue")}
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	_, skip, err := s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipMarketData || err == nil {
		t.Fatalf("got skip=%q err=%v, want market_data with error", skip, err)
	}
}

func TestScanSkipsInsufficientHistory(t *testing.T) {
	market := &stubMarket{
		series: map[string]map[drepo.Timeframe][]models.Bar{
			"NEWUSDT": uniformSeries(hourlyBars(risingCloses(20, 100), 5000)),
		},
	}
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	_, skip, err := s.Scan(context.Background(), "NEWUSDT")
	if skip != models.SkipInsufficientData {
		t.Fatalf("got skip=%q err=%v, want insufficient_data", skip, err)
	}
	if err != nil {
		t.Fatalf("insufficient history is a decision, not a failure: %v", err)
	}
}

func TestScanSkipsLiquidityGate(t *testing.T) {
	market := &stubMarket{
		series: map[string]map[drepo.Timeframe][]models.Bar{
			"THINUSDT": uniformSeries(hourlyBars(risingCloses(60, 100), 10)),
		},
	}
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	_, skip, _ := s.Scan(context.Background(), "THINUSDT")
	if skip != models.SkipLiquidityGate {
		t.Fatalf("got skip=%q, want liquidity_gate", skip)
	}
}

func TestScanSkipsNoCandidateOnSplitVotes(t *testing.T) {
	market := &stubMarket{
		series: map[string]map[drepo.Timeframe][]models.Bar{
			"MIXUSDT": {
				drepo.TF15m: hourlyBars(risingCloses(60, 100), 5000),
				drepo.TF1h:  hourlyBars(fallingCloses(60, 200), 5000),
				drepo.TF4h:  hourlyBars(flatCloses(60, 100), 5000),
			},
		},
	}
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	_, skip, _ := s.Scan(context.Background(), "MIXUSDT")
	if skip != models.SkipNoCandidate {
		t.Fatalf("got skip=%q, want no_candidate", skip)
	}
}

func TestScanSkipsDisagreement(t *testing.T) {
	market := &stubMarket{
		series: map[string]map[drepo.Timeframe][]models.Bar{
			"SPLITUSDT": {
				drepo.TF15m: hourlyBars(risingCloses(60, 100), 5000),
				drepo.TF1h:  hourlyBars(risingCloses(60, 100), 5000),
				drepo.TF4h:  hourlyBars(fallingCloses(60, 200), 5000),
			},
		},
	}
	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}})

	_, skip, _ := s.Scan(context.Background(), "SPLITUSDT")
	if skip != models.SkipDisagreement {
		t.Fatalf("got skip=%q, want disagreement", skip)
	}
}

func TestScanFilterFailOpen(t *testing.T) {
	market := trendingMarket("BTCUSDT")
	acct := stubAccount{st: models.AccountState{Equity: 1000, Leverage: 20}}

	clean := newRealScanner(testScannerConfig(), market, &stubFilter{}, acct)
	want, skip, err := clean.Scan(context.Background(), "BTCUSDT")
	if err != nil || skip != "" {
		t.Fatalf("baseline scan skipped: reason=%q err=%v", skip, err)
	}

	broken := &stubFilter{err: models.ErrFilterUnavailable}
	degraded := newRealScanner(testScannerConfig(), market, broken, acct)
	got, skip, err := degraded.Scan(context.Background(), "BTCUSDT")
	if err != nil || skip != "" {
		t.Fatalf("degraded scan skipped: reason=%q err=%v", skip, err)
	}
	if broken.called != 1 {
		t.Fatalf("filter called %d times, want 1", broken.called)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("unavailable filter changed the result:\n%+v\nvs\n%+v", want, got)
	}
}

func TestScanFilterVeto(t *testing.T) {
	market := trendingMarket("BTCUSDT")
	s := newStubScanner(testScannerConfig(), market,
		stubScore{sig: validSig(85, 90), ok: true},
		&stubFilter{adj: domsvc.Adjustment{Veto: true}})

	_, skip, _ := s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipFilterVeto {
		t.Fatalf("got skip=%q, want filter_veto", skip)
	}
}

func TestScanFilterBoundsAdjustment(t *testing.T) {
	market := trendingMarket("BTCUSDT")

	boosted := newStubScanner(testScannerConfig(), market,
		stubScore{sig: validSig(95, 90), ok: true},
		&stubFilter{adj: domsvc.Adjustment{ScoreDelta: 50, ConfidenceDelta: 50}})
	rec, skip, err := boosted.Scan(context.Background(), "BTCUSDT")
	if err != nil || skip != "" {
		t.Fatalf("boosted scan skipped: reason=%q err=%v", skip, err)
	}
	if rec.Signal.Score != 100 || rec.Signal.Confidence != 100 {
		t.Fatalf("got %g/%g, want both clamped to 100", rec.Signal.Score, rec.Signal.Confidence)
	}

	dampened := newStubScanner(testScannerConfig(), market,
		stubScore{sig: validSig(85, 90), ok: true},
		&stubFilter{adj: domsvc.Adjustment{ScoreDelta: -50, ConfidenceDelta: -50}})
	rec, skip, err = dampened.Scan(context.Background(), "BTCUSDT")
	if err != nil || skip != "" {
		t.Fatalf("dampened scan skipped: reason=%q err=%v", skip, err)
	}
	// floor is score-cap, still above the validity threshold here
	if rec.Signal.Score != 75 || rec.Signal.Confidence != 80 {
		t.Fatalf("got %g/%g, want 75/80", rec.Signal.Score, rec.Signal.Confidence)
	}
}

func TestScanFilterAdjustmentFailsClosed(t *testing.T) {
	cfg := testScannerConfig()
	cfg.AdjustmentCap = 20
	market := trendingMarket("BTCUSDT")
	s := newStubScanner(cfg, market,
		stubScore{sig: validSig(65, 90), ok: true},
		&stubFilter{adj: domsvc.Adjustment{ScoreDelta: -15}})

	_, skip, _ := s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipBelowThreshold {
		t.Fatalf("got skip=%q, want below_threshold after downgrade", skip)
	}
}

func TestScanSkipsBelowThreshold(t *testing.T) {
	market := trendingMarket("BTCUSDT")
	s := newStubScanner(testScannerConfig(), market,
		stubScore{sig: validSig(59.9, 90), ok: true},
		&stubFilter{})

	_, skip, _ := s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipBelowThreshold {
		t.Fatalf("got skip=%q, want below_threshold", skip)
	}
}

func TestScanSkipsInvalidAccount(t *testing.T) {
	market := trendingMarket("BTCUSDT")

	s := newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{st: models.AccountState{Equity: 0, Leverage: 20}})
	_, skip, err := s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipAccountState || !errors.Is(err, models.ErrInvalidAccountState) {
		t.Fatalf("got skip=%q err=%v, want account_state with ErrInvalidAccountState", skip, err)
	}

	s = newRealScanner(testScannerConfig(), market, &stubFilter{}, stubAccount{err: errors.New("wallet file missing")})
	_, skip, err = s.Scan(context.Background(), "BTCUSDT")
	if skip != models.SkipAccountState || err == nil {
		t.Fatalf("got skip=%q err=%v, want account_state with error", skip, err)
	}
}
