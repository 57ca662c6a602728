package models

import "time"

// SkipReason explains why a scanned instrument produced no recommendation.
type SkipReason string

const (
	SkipMarketData       SkipReason = "market_data"
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipLiquidityGate    SkipReason = "liquidity_gate"
	SkipNoCandidate      SkipReason = "no_candidate"
	SkipDisagreement     SkipReason = "disagreement"
	SkipBelowThreshold   SkipReason = "below_threshold"
	SkipFilterVeto       SkipReason = "filter_veto"
	SkipAccountState     SkipReason = "account_state"
)

// Recommendation pairs an accepted signal with its trade structure.
type Recommendation struct {
	Signal    Signal
	Structure TradeStructure
}

// ScanResult is the consolidated, ranked outcome of one scan cycle.
// Note: no transport (json/http) concerns here.
type ScanResult struct {
	StartedAt       time.Time
	FinishedAt      time.Time
	Universe        int // instruments the cycle considered
	Recommendations []Recommendation
	Skips           map[SkipReason]int
}

// Top returns the first k recommendations (the list is already ranked).
func (r ScanResult) Top(k int) []Recommendation {
	if k <= 0 || k >= len(r.Recommendations) {
		return r.Recommendations
	}
	return r.Recommendations[:k]
}
