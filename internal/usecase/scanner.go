package usecase

import (
	"context"
	"errors"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/services/mlfilter"
	"PerpScout/pkg/logger"
)

// ScannerConfig holds the per-instrument pipeline settings.
type ScannerConfig struct {
	Short       drepo.Timeframe
	Medium      drepo.Timeframe
	Long        drepo.Timeframe
	CandleLimit int

	MinVolume float64 // latest medium-horizon bar volume floor
	MinATRPct float64 // atr/close floor
	RSILow    float64 // medium RSI must stay inside (RSILow, RSIHigh)
	RSIHigh   float64

	MinScore      float64
	MinConfidence float64
	AdjustmentCap float64
}

// Scanner runs the full per-instrument pipeline: fetch, align, gate,
// classify, score, filter, structure.
type Scanner struct {
	cfg     ScannerConfig
	market  drepo.MarketData
	prices  drepo.PriceSource
	account drepo.AccountSource
	aligner domsvc.Aligner
	regime  domsvc.RegimeClassifier
	score   domsvc.ScoreModel
	filter  domsvc.SignalFilter
	risk    domsvc.TradeStructurer
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewScanner creates a new Scanner instance.
func NewScanner(
	cfg ScannerConfig,
	market drepo.MarketData,
	prices drepo.PriceSource,
	account drepo.AccountSource,
	aligner domsvc.Aligner,
	regime domsvc.RegimeClassifier,
	score domsvc.ScoreModel,
	filter domsvc.SignalFilter,
	risk domsvc.TradeStructurer,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Scanner {
	return &Scanner{
		cfg:     cfg,
		market:  market,
		prices:  prices,
		account: account,
		aligner: aligner,
		regime:  regime,
		score:   score,
		filter:  filter,
		risk:    risk,
		metrics: metrics,
		log:     log,
	}
}

// Scan evaluates one instrument. A non-empty skip reason means the
// instrument produced no recommendation this cycle; err carries detail
// for the reasons that stem from a failure rather than a decision.
func (s *Scanner) Scan(ctx context.Context, symbol string) (models.Recommendation, models.SkipReason, error) {
	var zero models.Recommendation

	bars, err := s.fetch(ctx, symbol)
	if err != nil {
		return zero, models.SkipMarketData, err
	}

	al, err := s.aligner.Align(bars)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			return zero, models.SkipInsufficientData, nil
		}
		return zero, models.SkipMarketData, err
	}
	if !s.gatesPass(bars.Medium, al) {
		return zero, models.SkipLiquidityGate, nil
	}

	regime, style := s.regime.Classify(al)
	sig, ok := s.score.Score(symbol, al, regime, style)
	if !ok {
		return zero, models.SkipNoCandidate, nil
	}
	if !sig.Valid(s.cfg.MinScore, s.cfg.MinConfidence) {
		if !sig.Unanimous {
			return zero, models.SkipDisagreement, nil
		}
		return zero, models.SkipBelowThreshold, nil
	}

	adj, err := s.filter.Evaluate(ctx, domsvc.Features{Signal: sig, Views: al.Views})
	if err != nil {
		// Filter trouble never blocks a valid signal.
		s.metrics.RecordError("filter")
		if s.log != nil {
			s.log.Warn("signal filter unavailable, passing through",
				logger.String("symbol", symbol), logger.Error(err))
		}
		adj = domsvc.Adjustment{}
	}
	if adj.Veto {
		return zero, models.SkipFilterVeto, nil
	}
	sig = mlfilter.Apply(sig, adj, s.cfg.AdjustmentCap)
	if !sig.Valid(s.cfg.MinScore, s.cfg.MinConfidence) {
		return zero, models.SkipBelowThreshold, nil
	}

	if s.prices != nil {
		if px, fresh := s.prices.MarkPrice(symbol); fresh && px > 0 {
			sig.ReferencePrice = px
		}
	}

	acct, err := s.account.Account(ctx)
	if err != nil {
		return zero, models.SkipAccountState, err
	}
	structure, err := s.risk.Structure(sig, acct)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAccountState) {
			return zero, models.SkipAccountState, err
		}
		return zero, models.SkipMarketData, fmt.Errorf("structure %s: %w", symbol, err)
	}

	s.metrics.RecordSignal(symbol, string(sig.Side), sig.Score)
	return models.Recommendation{Signal: sig, Structure: structure}, "", nil
}

func (s *Scanner) fetch(ctx context.Context, symbol string) (domsvc.HorizonBars, error) {
	var hb domsvc.HorizonBars
	var err error
	if hb.Short, err = s.market.Candles(ctx, symbol, s.cfg.Short, s.cfg.CandleLimit); err != nil {
		return hb, fmt.Errorf("fetch %s %s candles: %w", symbol, s.cfg.Short, err)
	}
	if hb.Medium, err = s.market.Candles(ctx, symbol, s.cfg.Medium, s.cfg.CandleLimit); err != nil {
		return hb, fmt.Errorf("fetch %s %s candles: %w", symbol, s.cfg.Medium, err)
	}
	if hb.Long, err = s.market.Candles(ctx, symbol, s.cfg.Long, s.cfg.CandleLimit); err != nil {
		return hb, fmt.Errorf("fetch %s %s candles: %w", symbol, s.cfg.Long, err)
	}
	return hb, nil
}

// gatesPass applies the liquidity and chop gates on the medium horizon.
func (s *Scanner) gatesPass(medium []models.Bar, al domsvc.Alignment) bool {
	if len(medium) == 0 {
		return false
	}
	last := medium[len(medium)-1]
	if last.Volume < s.cfg.MinVolume {
		return false
	}
	set := al.Views[1].Latest // medium view
	if last.Close <= 0 || set.ATR/last.Close < s.cfg.MinATRPct {
		return false
	}
	if set.RSI <= s.cfg.RSILow || set.RSI >= s.cfg.RSIHigh {
		return false
	}
	return true
}
