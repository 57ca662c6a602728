package models

import "time"

// TradeStructure is the executable shape of an accepted signal. Price
// levels and sizes are rounded to six decimal places so repeated runs on
// identical input produce identical output.
type TradeStructure struct {
	Entry            float64
	TakeProfit       float64
	StopLoss         float64
	TrailingStop     float64 // initial trailing level once armed
	TrailActivation  float64 // price at which the trailing stop arms
	PositionSize     float64 // base-asset quantity
	MarginRequired   float64
	LiquidationPrice float64 // estimate only, venue mechanics differ
	Leverage         float64
}

// AccountState is the equity and leverage snapshot used for sizing.
type AccountState struct {
	Equity   float64
	Leverage float64
}

// TradeOutcome is a closed-trade report from an execution collaborator.
// Outcomes feed the historical win-rate the signal filter consumes.
type TradeOutcome struct {
	Symbol     string
	Side       Side
	Regime     Regime
	Style      Style
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Win reports whether the trade closed profitably.
func (t TradeOutcome) Win() bool { return t.PnL > 0 }

// WinRate aggregates historical outcomes for one (symbol, regime, style)
// combination.
type WinRate struct {
	Symbol string
	Regime Regime
	Style  Style
	Wins   int
	Total  int
}

// Rate returns wins/total, or -1 when no history exists.
func (w WinRate) Rate() float64 {
	if w.Total == 0 {
		return -1
	}
	return float64(w.Wins) / float64(w.Total)
}
