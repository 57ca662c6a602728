package signal

import (
	"reflect"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
)

func upSet(rsi float64) models.IndicatorSet {
	return models.IndicatorSet{
		Ready:      true,
		EMAFast:    102,
		EMASlow:    101,
		SMA:        100,
		RSI:        rsi,
		MACDLine:   1.2,
		MACDSignal: 0.8,
		ATR:        1.0,
		BBUpper:    104,
		BBMid:      100,
		BBLower:    96,
	}
}

func downSet(rsi float64) models.IndicatorSet {
	return models.IndicatorSet{
		Ready:      true,
		EMAFast:    99,
		EMASlow:    100,
		SMA:        100,
		RSI:        rsi,
		MACDLine:   0.8,
		MACDSignal: 1.2,
		ATR:        1.0,
		BBUpper:    104,
		BBMid:      100,
		BBLower:    96,
	}
}

func alignmentWith(trends [3]models.Trend, set models.IndicatorSet, closePx float64) domsvc.Alignment {
	var a domsvc.Alignment
	labels := models.AllHorizons()
	for i := range labels {
		a.Views[i] = models.HorizonView{
			Horizon: labels[i],
			Trend:   trends[i],
			Close:   closePx,
			Latest:  set,
		}
	}
	a.Persistence = 15
	a.BarTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return a
}

func TestScoreUnanimousLongSetup(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	allUp := [3]models.Trend{models.TrendUp, models.TrendUp, models.TrendUp}
	a := alignmentWith(allUp, upSet(65), 100)

	sig, ok := s.Score("BTCUSDT", a, models.RegimeBreakout, models.StyleTrend)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if sig.Side != models.SideLong {
		t.Fatalf("side = %s, want long", sig.Side)
	}
	// agreement 40 + rsi 10 + macd 20 + style 10 + vol 10, factor 1.0
	if sig.Score != 90 {
		t.Fatalf("score = %v, want 90", sig.Score)
	}
	if sig.Confidence != 100 {
		t.Fatalf("confidence = %v, want 100", sig.Confidence)
	}
	if !sig.Unanimous {
		t.Fatalf("expected unanimous")
	}
	if !sig.Valid(s.Config().MinScore, s.Config().MinConfidence) {
		t.Fatalf("expected valid signal")
	}
}

func TestScoreShortMirror(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	allDown := [3]models.Trend{models.TrendDown, models.TrendDown, models.TrendDown}
	a := alignmentWith(allDown, downSet(35), 100)

	sig, ok := s.Score("ETHUSDT", a, models.RegimeMean, models.StyleSwing)
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if sig.Side != models.SideShort {
		t.Fatalf("side = %s, want short", sig.Side)
	}
	// agreement 40 + rsi 10 + macd 20 + style 5 + vol 10, factor 1.0
	if sig.Score != 85 {
		t.Fatalf("score = %v, want 85", sig.Score)
	}
}

func TestScoreDisagreementCapsBelowThreshold(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	trends := []models.Trend{models.TrendUp, models.TrendDown, models.TrendFlat}
	sets := []models.IndicatorSet{upSet(80), downSet(20)}

	for _, set := range sets {
		for _, a := range trends {
			for _, b := range trends {
				for _, c := range trends {
					tset := [3]models.Trend{a, b, c}
					if a == b && b == c && a != models.TrendFlat {
						continue // unanimous, out of scope here
					}
					sig, ok := s.Score("BTCUSDT", alignmentWith(tset, set, 100), models.RegimeBreakout, models.StyleTrend)
					if !ok {
						continue
					}
					if sig.Unanimous {
						t.Fatalf("trends %v marked unanimous", tset)
					}
					if sig.Score >= s.Config().MinScore {
						t.Fatalf("trends %v: score %v not structurally capped below %v",
							tset, sig.Score, s.Config().MinScore)
					}
				}
			}
		}
	}
}

func TestScoreNoMajority(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	for _, tset := range [][3]models.Trend{
		{models.TrendUp, models.TrendDown, models.TrendFlat},
		{models.TrendFlat, models.TrendFlat, models.TrendFlat},
		{models.TrendDown, models.TrendUp, models.TrendFlat},
	} {
		if _, ok := s.Score("BTCUSDT", alignmentWith(tset, upSet(65), 100), models.RegimeMean, models.StyleSwing); ok {
			t.Fatalf("trends %v: expected no candidate", tset)
		}
	}
}

func TestScoreExtremeVolatilityLowersConfidence(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	allUp := [3]models.Trend{models.TrendUp, models.TrendUp, models.TrendUp}

	quiet := upSet(65)
	quiet.ATR = 0.05 // atr/sma = 0.0005, below the band
	sigQuiet, _ := s.Score("BTCUSDT", alignmentWith(allUp, quiet, 100), models.RegimeMean, models.StyleTrend)

	normal := upSet(65)
	sigNormal, _ := s.Score("BTCUSDT", alignmentWith(allUp, normal, 100), models.RegimeMean, models.StyleTrend)

	if sigQuiet.Confidence >= sigNormal.Confidence {
		t.Fatalf("quiet confidence %v not below normal %v", sigQuiet.Confidence, sigNormal.Confidence)
	}
	if sigQuiet.Score >= sigNormal.Score {
		t.Fatalf("quiet score %v not below normal %v", sigQuiet.Score, sigNormal.Score)
	}
}

func TestScoreDeterminism(t *testing.T) {
	s := NewScorer(DefaultScoreConfig())
	allUp := [3]models.Trend{models.TrendUp, models.TrendUp, models.TrendUp}
	a := alignmentWith(allUp, upSet(65), 100)

	first, ok1 := s.Score("BTCUSDT", a, models.RegimeBreakout, models.StyleTrend)
	second, ok2 := s.Score("BTCUSDT", a, models.RegimeBreakout, models.StyleTrend)
	if !ok1 || !ok2 {
		t.Fatalf("expected candidates")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different signals: %+v vs %+v", first, second)
	}
}

func TestSignalValidBoundary(t *testing.T) {
	cfg := DefaultScoreConfig()
	sig := models.Signal{Score: 60, Confidence: 70, Unanimous: true}
	if !sig.Valid(cfg.MinScore, cfg.MinConfidence) {
		t.Fatalf("60/70 must be accepted, thresholds are inclusive")
	}
	sig.Score = 59.999
	if sig.Valid(cfg.MinScore, cfg.MinConfidence) {
		t.Fatalf("59.999 accepted")
	}
	sig.Score, sig.Confidence = 60, 69.999
	if sig.Valid(cfg.MinScore, cfg.MinConfidence) {
		t.Fatalf("69.999 accepted")
	}
	sig.Confidence = 70
	sig.Unanimous = false
	if sig.Valid(cfg.MinScore, cfg.MinConfidence) {
		t.Fatalf("non-unanimous signal accepted")
	}
}
