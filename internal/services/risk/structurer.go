package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"PerpScout/internal/domain/models"
)

// Config holds the sizing and level parameters for structuring.
type Config struct {
	RiskFraction          float64 // fraction of equity committed per position
	StopATR               float64 // stop-loss distance in ATR multiples
	TakeATR               float64 // take-profit distance in ATR multiples
	TrailATR              float64 // trailing distance in ATR multiples
	TrailActivation       float64 // fraction of the entry-to-TP distance
	MaintenanceMarginRate float64
}

// DefaultConfig returns the standard risk parameters.
func DefaultConfig() Config {
	return Config{
		RiskFraction:          0.75,
		StopATR:               1.5,
		TakeATR:               3.0,
		TrailATR:              1.0,
		TrailActivation:       0.5,
		MaintenanceMarginRate: 0.005,
	}
}

// Structurer converts accepted signals into executable trade structures.
// It never holds a reference to what it returns.
type Structurer struct {
	cfg Config
}

// NewStructurer creates a structurer with the given risk parameters.
func NewStructurer(cfg Config) *Structurer { return &Structurer{cfg: cfg} }

// Structure implements service.TradeStructurer. Every returned structure
// satisfies the side ordering: long means SL < entry < TP, short means
// TP < entry < SL, and all levels stay positive.
func (s *Structurer) Structure(sig models.Signal, account models.AccountState) (models.TradeStructure, error) {
	if account.Equity <= 0 || account.Leverage <= 0 {
		return models.TradeStructure{}, fmt.Errorf("equity %v, leverage %v: %w",
			account.Equity, account.Leverage, models.ErrInvalidAccountState)
	}
	entry := sig.ReferencePrice
	atr := sig.ATR
	if entry <= 0 || atr <= 0 {
		return models.TradeStructure{}, fmt.Errorf("degenerate signal levels: entry %v, atr %v", entry, atr)
	}

	var sl, tp, trail, activation float64
	switch sig.Side {
	case models.SideLong:
		sl = entry - s.cfg.StopATR*atr
		tp = entry + s.cfg.TakeATR*atr
		trail = entry - s.cfg.TrailATR*atr
		activation = entry + s.cfg.TrailActivation*(tp-entry)
	case models.SideShort:
		sl = entry + s.cfg.StopATR*atr
		tp = entry - s.cfg.TakeATR*atr
		trail = entry + s.cfg.TrailATR*atr
		activation = entry - s.cfg.TrailActivation*(entry-tp)
	default:
		return models.TradeStructure{}, fmt.Errorf("unknown side %q", sig.Side)
	}
	if sl <= 0 || tp <= 0 || trail <= 0 {
		return models.TradeStructure{}, fmt.Errorf("atr %v too wide for price %v", atr, entry)
	}

	size := account.Equity * s.cfg.RiskFraction / entry
	margin := size * entry / account.Leverage
	liq := liquidationPrice(sig.Side, entry, account.Leverage, s.cfg.MaintenanceMarginRate)

	out := models.TradeStructure{
		Entry:            round6(entry),
		TakeProfit:       round6(tp),
		StopLoss:         round6(sl),
		TrailingStop:     round6(trail),
		TrailActivation:  round6(activation),
		PositionSize:     round6(size),
		MarginRequired:   round6(margin),
		LiquidationPrice: round6(liq),
		Leverage:         account.Leverage,
	}
	if !ordered(sig.Side, out) {
		return models.TradeStructure{}, fmt.Errorf("price granularity collapsed levels at entry %v, atr %v", entry, atr)
	}
	return out, nil
}

// ordered re-checks the levels after rounding; a sub-micro ATR can
// collapse adjacent levels onto the same six-decimal tick. The trailing
// activation must also stay strictly off the entry, or a fresh position
// would arm its trail immediately.
func ordered(side models.Side, ts models.TradeStructure) bool {
	if side == models.SideShort {
		return ts.TakeProfit < ts.Entry && ts.Entry < ts.StopLoss &&
			ts.TakeProfit < ts.TrailActivation && ts.TrailActivation < ts.Entry
	}
	return ts.StopLoss < ts.Entry && ts.Entry < ts.TakeProfit &&
		ts.Entry < ts.TrailActivation && ts.TrailActivation < ts.TakeProfit
}

// liquidationPrice estimates the leveraged liquidation level. Venue
// mechanics (funding, tiered margin) move the real level.
func liquidationPrice(side models.Side, entry, leverage, mmr float64) float64 {
	if side == models.SideShort {
		return entry * (1 + 1/leverage - mmr)
	}
	return entry * (1 - 1/leverage + mmr)
}

// round6 fixes a published level to six decimal places so repeated runs
// on identical input emit identical structures.
func round6(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}
