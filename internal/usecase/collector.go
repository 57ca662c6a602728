package usecase

import (
	"context"
	"fmt"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	mid "PerpScout/internal/middleware"
)

// TickApplier is the terminal stage of the tick pipeline: it folds a
// live tick into the mark-price sink and the last-price gauge.
type TickApplier struct {
	sink    drepo.PriceSink
	metrics drepo.Metrics
}

// NewTickApplier creates a new TickApplier instance.
func NewTickApplier(sink drepo.PriceSink, metrics drepo.Metrics) *TickApplier {
	return &TickApplier{sink: sink, metrics: metrics}
}

func (a *TickApplier) Process(_ context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	if a.sink != nil {
		a.sink.SetPrice(t.Symbol, t.Price)
	}
	a.metrics.RecordLastPrice(t.Symbol, t.Price)
	return nil
}

// PriceCollector keeps the mark-price cache warm from the live ticker
// stream of the current universe.
type PriceCollector struct {
	stream     drepo.MarketStream
	market     drepo.MarketData
	applier    *TickApplier
	metrics    drepo.Metrics
	pipe       *mid.TickPipeline
	maxSymbols int
}

// NewPriceCollector creates a new PriceCollector instance.
func NewPriceCollector(stream drepo.MarketStream, market drepo.MarketData, applier *TickApplier, metrics drepo.Metrics, pipe *mid.TickPipeline, maxSymbols int) *PriceCollector {
	return &PriceCollector{stream: stream, market: market, applier: applier, metrics: metrics, pipe: pipe, maxSymbols: maxSymbols}
}

// IsConnected returns true if the market stream is connected.
func (c *PriceCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *PriceCollector) Start(ctx context.Context) error {
	instruments, err := c.market.TopSymbols(ctx, c.maxSymbols)
	if err != nil {
		return fmt.Errorf("resolve universe: %w", err)
	}
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		symbols = append(symbols, inst.Symbol)
	}

	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, symbols); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

func (c *PriceCollector) consume(ctx context.Context, tickCh <-chan *models.Tick, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case t := <-tickCh:
			if t == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, t)
			} else {
				_ = c.applier.Process(ctx, t)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *PriceCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
