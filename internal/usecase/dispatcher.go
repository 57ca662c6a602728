package usecase

import (
	"context"
	"time"

	"PerpScout/internal/domain/models"
	drepo "PerpScout/internal/domain/repository"
	"PerpScout/pkg/logger"
)

// SignalDispatcher routes a ranked scan result to the configured sinks.
// Sink failures are logged and counted, never fail the scan.
type SignalDispatcher struct {
	store    drepo.SignalStore
	pub      drepo.Publisher
	notifier drepo.Notifier
	metrics  drepo.Metrics
	log      *logger.Logger
	topN     int
}

// NewSignalDispatcher creates a new SignalDispatcher instance. Any sink
// may be nil.
func NewSignalDispatcher(
	store drepo.SignalStore,
	pub drepo.Publisher,
	notifier drepo.Notifier,
	metrics drepo.Metrics,
	log *logger.Logger,
	topN int,
) *SignalDispatcher {
	return &SignalDispatcher{
		store:    store,
		pub:      pub,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		topN:     topN,
	}
}

// Dispatch persists, publishes and announces the cycle's recommendations.
func (d *SignalDispatcher) Dispatch(ctx context.Context, res *models.ScanResult) {
	if res == nil || len(res.Recommendations) == 0 {
		return
	}
	start := time.Now()

	if d.store != nil {
		if err := d.store.SaveRecommendations(ctx, res.Recommendations); err != nil {
			d.metrics.RecordError("store")
			d.warn("persist recommendations", err)
		}
	}
	if d.pub != nil {
		if err := d.pub.PublishBatch(ctx, res.Recommendations); err != nil {
			d.metrics.RecordError("publish")
			d.warn("publish recommendations", err)
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, res.Top(d.topN)); err != nil {
			d.metrics.RecordError("notify")
			d.warn("notify recommendations", err)
		}
	}

	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
}

func (d *SignalDispatcher) warn(op string, err error) {
	if d.log != nil {
		d.log.Warn(op+" failed", logger.Error(err))
	}
}

// Close closes underlying resources if available.
func (d *SignalDispatcher) Close() {
	if d.pub != nil {
		_ = d.pub.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}
