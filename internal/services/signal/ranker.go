package signal

import (
	"sort"

	"PerpScout/internal/domain/models"
)

// Ranker orders recommendations for downstream selection.
type Ranker struct{}

// NewRanker creates a ranker.
func NewRanker() *Ranker { return &Ranker{} }

// Rank implements service.Ranker: score descending, confidence
// descending, then symbol ascending so identical inputs always rank
// identically. The input slice is left untouched.
func (r *Ranker) Rank(recs []models.Recommendation) []models.Recommendation {
	out := make([]models.Recommendation, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Signal, out[j].Signal
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Symbol < b.Symbol
	})
	return out
}
