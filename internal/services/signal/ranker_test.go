package signal

import (
	"testing"

	"PerpScout/internal/domain/models"
)

func rec(symbol string, score, conf float64) models.Recommendation {
	return models.Recommendation{
		Signal: models.Signal{Symbol: symbol, Score: score, Confidence: conf},
	}
}

func TestRankerOrdersAndBreaksTies(t *testing.T) {
	in := []models.Recommendation{
		rec("SOLUSDT", 80, 90),
		rec("BTCUSDT", 92, 75),
		rec("XRPUSDT", 80, 90), // full tie with SOL, symbol decides
		rec("ETHUSDT", 80, 95),
	}
	out := NewRanker().Rank(in)

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	for i, sym := range want {
		if out[i].Signal.Symbol != sym {
			t.Fatalf("rank %d = %s, want %s", i, out[i].Signal.Symbol, sym)
		}
	}
	// Input order is preserved.
	if in[0].Signal.Symbol != "SOLUSDT" || in[3].Signal.Symbol != "ETHUSDT" {
		t.Fatalf("input slice mutated: %+v", in)
	}
}

func TestRankerDeterminism(t *testing.T) {
	in := []models.Recommendation{
		rec("AUSDT", 70, 80),
		rec("CUSDT", 70, 80),
		rec("BUSDT", 70, 80),
	}
	r := NewRanker()
	first := r.Rank(in)
	second := r.Rank(in)
	for i := range first {
		if first[i].Signal.Symbol != second[i].Signal.Symbol {
			t.Fatalf("rank %d differs between runs: %s vs %s",
				i, first[i].Signal.Symbol, second[i].Signal.Symbol)
		}
	}
	if first[0].Signal.Symbol != "AUSDT" || first[2].Signal.Symbol != "CUSDT" {
		t.Fatalf("tie-break order wrong: %v %v %v",
			first[0].Signal.Symbol, first[1].Signal.Symbol, first[2].Signal.Symbol)
	}
}
