//go:build wireinject
// +build wireinject

package di

import (
	"PerpScout/internal/usecase"
	"PerpScout/pkg/config"
	"PerpScout/pkg/server"

	"github.com/google/wire"
)

// InitializeApp assembles the full application graph. The body is a
// wire declaration; the generated version lives in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Backing stores and brokers
		ProvideClickHouseClient,
		ProvidePgPool,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCandleArchive,
		ProvideMarketData,
		ProvideSignalStore,
		ProvideWinRates,
		ProvideSignalPublisher,

		// Pipeline services
		ProvideIndicatorEngine,
		ProvideAligner,
		ProvideClassifier,
		ProvideScorer,
		ProvideStructurer,
		ProvideRanker,
		ProvideAccountSource,
		ProvideMarkPrices,
		ProvideSignalFilter,

		// Delivery
		ProvideNotifyQueue,
		ProvideNotifier,

		// Use cases
		ProvideScanner,
		ProvideDispatcher,
		ProvideScanEngine,
		ProvidePriceCollector,
		ProvideOutcomesHandler,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeEngine wires the scan pipeline and its sinks without the
// HTTP server, collector or consumer, for one-shot runs.
func InitializeEngine(cfg *config.Config) (*usecase.ScanEngine, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		ProvideClickHouseClient,
		ProvidePgPool,
		ProvideRedisCache,
		ProvideKafkaProducer,

		ProvideMarketData,
		ProvideSignalStore,
		ProvideWinRates,
		ProvideSignalPublisher,

		ProvideIndicatorEngine,
		ProvideAligner,
		ProvideClassifier,
		ProvideScorer,
		ProvideStructurer,
		ProvideRanker,
		ProvideAccountSource,
		ProvideMarkPrices,
		ProvideSignalFilter,

		ProvideNotifyQueue,
		ProvideNotifier,

		ProvideScanner,
		ProvideDispatcher,
		ProvideScanEngine,
	)
	return &usecase.ScanEngine{}, nil
}
