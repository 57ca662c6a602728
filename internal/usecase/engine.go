package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/pkg/logger"
)

// EngineConfig holds the cycle-level settings.
type EngineConfig struct {
	MaxSymbols   int
	Workers      int
	ScanInterval time.Duration
}

// CycleLock coordinates scan intervals across replicas. A failed
// acquisition means another instance owns the current interval.
type CycleLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const cycleLockKey = "scan:cycle"

// ScanEngine runs scan cycles over the ranked instrument universe and
// hands the ordered result to the dispatcher.
type ScanEngine struct {
	cfg        EngineConfig
	market     drepo.MarketData
	scanner    *Scanner
	ranker     domsvc.Ranker
	dispatcher *SignalDispatcher
	metrics    drepo.Metrics
	log        *logger.Logger
	lock       CycleLock

	mu   sync.RWMutex
	last *models.ScanResult
}

// NewScanEngine creates a new ScanEngine instance.
func NewScanEngine(
	cfg EngineConfig,
	market drepo.MarketData,
	scanner *Scanner,
	ranker domsvc.Ranker,
	dispatcher *SignalDispatcher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *ScanEngine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ScanEngine{
		cfg:        cfg,
		market:     market,
		scanner:    scanner,
		ranker:     ranker,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log,
	}
}

type scanOutcome struct {
	symbol string
	rec    models.Recommendation
	skip   models.SkipReason
	err    error
}

// RunCycle scans the universe once, ranks the accepted signals and
// dispatches the result. Per-instrument failures skip that instrument
// only; a canceled context aborts the whole cycle.
func (e *ScanEngine) RunCycle(ctx context.Context) (*models.ScanResult, error) {
	started := time.Now()
	instruments, err := e.market.TopSymbols(ctx, e.cfg.MaxSymbols)
	if err != nil {
		e.metrics.RecordError("universe")
		return nil, fmt.Errorf("fetch universe: %w", err)
	}

	jobs := make(chan string)
	results := make(chan scanOutcome, len(instruments))
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					return
				}
				rec, skip, err := e.scanner.Scan(ctx, symbol)
				results <- scanOutcome{symbol: symbol, rec: rec, skip: skip, err: err}
			}
		}()
	}

feed:
	for _, inst := range instruments {
		select {
		case jobs <- inst.Symbol:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &models.ScanResult{
		StartedAt: started,
		Universe:  len(instruments),
		Skips:     make(map[models.SkipReason]int),
	}
	accepted := make([]models.Recommendation, 0, len(instruments))
	for out := range results {
		if out.err != nil {
			e.metrics.RecordError("scan")
			if e.log != nil {
				e.log.Warn("instrument skipped",
					logger.String("symbol", out.symbol),
					logger.String("reason", string(out.skip)),
					logger.Error(out.err))
			}
		}
		if out.skip != "" {
			res.Skips[out.skip]++
			e.metrics.RecordSkip(string(out.skip))
			continue
		}
		accepted = append(accepted, out.rec)
	}
	res.Recommendations = e.ranker.Rank(accepted)
	res.FinishedAt = time.Now()

	e.mu.Lock()
	e.last = res
	e.mu.Unlock()

	e.metrics.RecordCycle(res.FinishedAt.Sub(started).Seconds(), res.Universe, len(res.Recommendations))
	if e.dispatcher != nil {
		e.dispatcher.Dispatch(ctx, res)
	}
	return res, nil
}

// SetCycleLock enables cross-replica interval coordination. Only the
// Run loop consults the lock; direct RunCycle calls never do.
func (e *ScanEngine) SetCycleLock(l CycleLock) { e.lock = l }

// Run executes cycles until the context is canceled, one per interval.
// The first cycle starts immediately.
func (e *ScanEngine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		if e.acquire(ctx) {
			if _, err := e.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.metrics.RecordError("cycle")
				if e.log != nil {
					e.log.Error("scan cycle failed", logger.Error(err))
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// acquire claims the current interval. The lock is never released; it
// expires on its own before the next tick.
func (e *ScanEngine) acquire(ctx context.Context) bool {
	if e.lock == nil {
		return true
	}
	ttl := e.cfg.ScanInterval * 4 / 5
	if ttl <= 0 {
		return true
	}
	ok, err := e.lock.TryLock(ctx, cycleLockKey, ttl)
	if err != nil {
		// Lock trouble must not stall scanning.
		e.metrics.RecordError("lock")
		if e.log != nil {
			e.log.Warn("cycle lock unavailable", logger.Error(err))
		}
		return true
	}
	if !ok && e.log != nil {
		e.log.Info("cycle held by another instance")
	}
	return ok
}

// Latest returns the most recent cycle result, nil before the first one.
func (e *ScanEngine) Latest() *models.ScanResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// Dispatcher exposes the engine's dispatcher so callers can close its
// sinks at shutdown.
func (e *ScanEngine) Dispatcher() *SignalDispatcher { return e.dispatcher }
