package signal

import (
	"math"

	"PerpScout/internal/domain/models"
	domsvc "PerpScout/internal/domain/service"
)

// ScoreConfig holds the fusion weights and volatility bands. The weights
// sum to the maximum raw score; the agreement factors scale the raw score
// down for anything short of full three-horizon agreement, which is what
// keeps partial candidates structurally below the score threshold.
type ScoreConfig struct {
	AgreementWeight float64
	RSIWeight       float64
	MACDWeight      float64
	StyleWeight     float64
	VolWeight       float64
	PartialFactor   float64 // scale when only two horizons vote the side
	SplitFactor     float64 // scale when only one horizon votes the side
	RSISaturation   float64 // RSI distance from 50 that earns full weight
	VolLow          float64 // atr/price below this counts as unreliable
	VolHigh         float64 // atr/price above this counts as unreliable
	MinScore        float64
	MinConfidence   float64
}

// DefaultScoreConfig returns the standard weights and bands.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		AgreementWeight: 40,
		RSIWeight:       20,
		MACDWeight:      20,
		StyleWeight:     10,
		VolWeight:       10,
		PartialFactor:   0.55,
		SplitFactor:     0.25,
		RSISaturation:   30,
		VolLow:          0.002,
		VolHigh:         0.05,
		MinScore:        60,
		MinConfidence:   70,
	}
}

// Confidence ladder steps. Confidence is a reliability rating, not a
// second score, so its steps stay fixed while the score weights tune.
const (
	confBase       = 50.0
	confUnanimous  = 25.0
	confPartial    = 10.0
	confVolBand    = 15.0
	confVolPenalty = 15.0
	confRSISane    = 10.0
)

// Scorer fuses horizon views, regime and style into a scored candidate.
// Identical inputs always produce identical output.
type Scorer struct {
	cfg ScoreConfig
}

// NewScorer creates a scorer with the given weights.
func NewScorer(cfg ScoreConfig) *Scorer { return &Scorer{cfg: cfg} }

// Config returns the scorer's weight set.
func (s *Scorer) Config() ScoreConfig { return s.cfg }

// Score implements service.ScoreModel. The boolean is false when the
// horizon votes produce no direction, which is a non-signal outcome.
func (s *Scorer) Score(symbol string, a domsvc.Alignment, regime models.Regime, style models.Style) (models.Signal, bool) {
	trends := a.Trends()
	side, votes, ok := sideVotes(trends)
	if !ok {
		return models.Signal{}, false
	}

	med := a.Views[1]
	ratio := volRatio(med.Latest)
	volInBand := ratio >= s.cfg.VolLow && ratio <= s.cfg.VolHigh

	raw := s.cfg.AgreementWeight
	raw += s.rsiContribution(side, med.Latest.RSI)
	raw += s.macdContribution(side, med.Latest)
	raw += s.styleContribution(style)
	if volInBand {
		raw += s.cfg.VolWeight
	}

	score := clamp(raw*s.agreementFactor(votes), 0, 100)
	conf := s.confidence(votes, volInBand, med.Latest.RSI)

	return models.Signal{
		Symbol:         symbol,
		Side:           side,
		Score:          score,
		Confidence:     conf,
		Regime:         regime,
		Style:          style,
		ReferencePrice: med.Close,
		ATR:            med.Latest.ATR,
		Trends:         trends,
		Unanimous:      trends.Unanimous(),
		BarTime:        a.BarTime,
	}, true
}

// sideVotes tallies the non-flat horizon votes. A tie, including the
// all-flat case, yields no candidate.
func sideVotes(t models.TrendSet) (models.Side, int, bool) {
	up, down := 0, 0
	for _, tr := range [3]models.Trend{t.Short, t.Medium, t.Long} {
		switch tr {
		case models.TrendUp:
			up++
		case models.TrendDown:
			down++
		}
	}
	if up == down {
		return "", 0, false
	}
	if up > down {
		return models.SideLong, up, true
	}
	return models.SideShort, down, true
}

func (s *Scorer) agreementFactor(votes int) float64 {
	switch votes {
	case 3:
		return 1.0
	case 2:
		return s.cfg.PartialFactor
	default:
		return s.cfg.SplitFactor
	}
}

// rsiContribution rewards RSI divergence from neutral in the direction of
// the side, saturating at RSISaturation points from 50.
func (s *Scorer) rsiContribution(side models.Side, rsi float64) float64 {
	div := rsi - 50
	if side == models.SideShort {
		div = -div
	}
	if div <= 0 {
		return 0
	}
	return clamp(div/s.cfg.RSISaturation, 0, 1) * s.cfg.RSIWeight
}

// macdContribution pays the full weight when the line sits on the side's
// side of the signal line.
func (s *Scorer) macdContribution(side models.Side, set models.IndicatorSet) float64 {
	if side == models.SideLong && set.MACDLine > set.MACDSignal {
		return s.cfg.MACDWeight
	}
	if side == models.SideShort && set.MACDLine < set.MACDSignal {
		return s.cfg.MACDWeight
	}
	return 0
}

// styleContribution pays the full weight for trend-style setups and half
// for the rest.
func (s *Scorer) styleContribution(style models.Style) float64 {
	if style == models.StyleTrend {
		return s.cfg.StyleWeight
	}
	return s.cfg.StyleWeight / 2
}

func (s *Scorer) confidence(votes int, volInBand bool, rsi float64) float64 {
	c := confBase
	switch votes {
	case 3:
		c += confUnanimous
	case 2:
		c += confPartial
	}
	if volInBand {
		c += confVolBand
	} else {
		c -= confVolPenalty
	}
	if math.Abs(rsi-50) < s.cfg.RSISaturation {
		c += confRSISane
	}
	return clamp(c, 0, 100)
}

// volRatio normalizes ATR by the SMA price level.
func volRatio(set models.IndicatorSet) float64 {
	if set.SMA <= 0 {
		return 0
	}
	return set.ATR / set.SMA
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
