package signal

import (
	"errors"
	"testing"
	"time"

	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/services/indicators"
)

func barsAt(closes []float64, span float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + span/2,
			Low:       c - span/2,
			Close:     c,
			Volume:    5000,
		}
	}
	return bars
}

func trendingBars(n int, start, step float64) []models.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return barsAt(closes, 1)
}

func flatBars(n int, price float64) []models.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return barsAt(closes, 1)
}

func newAligner() *Aligner {
	return NewAligner(indicators.NewEngine(indicators.DefaultWindows()))
}

func TestAlignerInsufficientHorizon(t *testing.T) {
	a := newAligner()
	_, err := a.Align(domsvc.HorizonBars{
		Short:  trendingBars(20, 100, 0.5), // below warm-up
		Medium: trendingBars(60, 100, 0.5),
		Long:   trendingBars(60, 100, 0.5),
	})
	if err == nil {
		t.Fatalf("expected error for short horizon below warm-up")
	}
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("error %v does not wrap ErrInsufficientData", err)
	}
}

func TestAlignerLabelsTrends(t *testing.T) {
	a := newAligner()
	out, err := a.Align(domsvc.HorizonBars{
		Short:  trendingBars(60, 100, 0.5),
		Medium: trendingBars(60, 100, 0.5),
		Long:   trendingBars(60, 200, -0.5),
	})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.Views[0].Trend != models.TrendUp {
		t.Fatalf("short trend = %s, want up", out.Views[0].Trend)
	}
	if out.Views[1].Trend != models.TrendUp {
		t.Fatalf("medium trend = %s, want up", out.Views[1].Trend)
	}
	if out.Views[2].Trend != models.TrendDown {
		t.Fatalf("long trend = %s, want down", out.Views[2].Trend)
	}
	if out.Views[0].Horizon != models.HorizonShort || out.Views[2].Horizon != models.HorizonLong {
		t.Fatalf("horizon labels out of order: %+v", out.Views)
	}
}

func TestAlignerFlatOnConstantSeries(t *testing.T) {
	a := newAligner()
	out, err := a.Align(domsvc.HorizonBars{
		Short:  flatBars(60, 100),
		Medium: flatBars(60, 100),
		Long:   flatBars(60, 100),
	})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	for i, v := range out.Views {
		if v.Trend != models.TrendFlat {
			t.Fatalf("view %d trend = %s, want flat", i, v.Trend)
		}
	}
}

func TestAlignerPersistenceAndBarTime(t *testing.T) {
	a := newAligner()
	medium := trendingBars(60, 100, 0.5)
	out, err := a.Align(domsvc.HorizonBars{
		Short:  trendingBars(60, 100, 0.5),
		Medium: medium,
		Long:   trendingBars(60, 100, 0.5),
	})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if out.Persistence <= 0 {
		t.Fatalf("persistence = %d, want > 0 on a steady trend", out.Persistence)
	}
	want := medium[len(medium)-1].Timestamp
	if !out.BarTime.Equal(want) {
		t.Fatalf("bar time = %v, want %v", out.BarTime, want)
	}
	if len(out.Long) != 60 || len(out.LongCloses) != 60 {
		t.Fatalf("long series not retained: %d sets, %d closes", len(out.Long), len(out.LongCloses))
	}
}
