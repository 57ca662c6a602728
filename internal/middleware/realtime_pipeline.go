package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PerpScout/internal/domain/models"
	domrepo "PerpScout/internal/domain/repository"
)

// Proc is the downstream stage ticks are handed to.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// throttle admits at most one tick per interval per symbol. The stream
// callback and the replay goroutine both consult it, so access is
// locked.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	lastSeen map[string]time.Time
}

func newThrottle(maxPerSec int) *throttle {
	t := &throttle{lastSeen: make(map[string]time.Time)}
	if maxPerSec > 0 {
		t.interval = time.Second / time.Duration(maxPerSec)
	}
	return t
}

func (t *throttle) allow(symbol string, now time.Time) bool {
	if t.interval <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastSeen[symbol]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSeen[symbol] = now
	return true
}

// TickPipeline sits between the WebSocket stream and the mark-price
// sink. It rejects malformed ticks, thins per-symbol bursts, and parks
// ticks when the sink errors, replaying them with backoff.
type TickPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	thr     *throttle
	buffer  chan *models.Tick
	stop    chan struct{}
	mu      sync.Mutex
	running bool
}

type pipelineConfig struct {
	maxRPS  int
	bufSize int
}

type PipelineOption func(*pipelineConfig)

// WithMaxRPS caps accepted ticks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.maxRPS = n
		}
	}
}

// WithBufferSize sizes the park buffer used while the sink errors.
func WithBufferSize(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// NewTickPipeline creates a pipeline in front of proc.
func NewTickPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickPipeline {
	cfg := pipelineConfig{maxRPS: 20, bufSize: 1000}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TickPipeline{
		proc:    proc,
		metrics: metrics,
		thr:     newThrottle(cfg.maxRPS),
		buffer:  make(chan *models.Tick, cfg.bufSize),
		stop:    make(chan struct{}),
	}
}

// Start launches the replay goroutine for parked ticks.
func (p *TickPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	go p.replay(ctx)
}

// Stop halts replay. Parked ticks are dropped; mark prices refresh on
// the next stream update anyway.
func (p *TickPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stop)
}

// Process validates and throttles one tick, then hands it downstream.
// Sink failures park the tick for replay instead of losing it.
func (p *TickPipeline) Process(ctx context.Context, t *models.Tick) error {
	start := time.Now()
	if err := checkTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.thr.allow(t.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.park(t)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *TickPipeline) park(t *models.Tick) {
	select {
	case p.buffer <- t:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// replay retries parked ticks with capped exponential backoff. The
// select-based wait keeps Stop responsive mid-backoff.
func (p *TickPipeline) replay(ctx context.Context) {
	const (
		minBackoff = 50 * time.Millisecond
		maxBackoff = 2 * time.Second
	)
	backoff := minBackoff
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case t := <-p.buffer:
			if t == nil {
				continue
			}
			if err := p.proc.Process(ctx, t); err != nil {
				p.metrics.RecordError("pipeline_flush")
				p.park(t)
				if backoff < maxBackoff {
					backoff *= 2
				}
				select {
				case <-p.stop:
					return
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				continue
			}
			backoff = minBackoff
		}
	}
}

func checkTick(t *models.Tick) error {
	switch {
	case t == nil:
		return fmt.Errorf("tick is nil")
	case t.Symbol == "":
		return fmt.Errorf("tick has no symbol")
	case t.Timestamp.IsZero():
		return fmt.Errorf("tick has no timestamp")
	case t.Price <= 0:
		return fmt.Errorf("tick price %v not positive", t.Price)
	}
	return nil
}
