package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	domrepo "PerpScout/internal/domain/repository"
	domsvc "PerpScout/internal/domain/service"
	"PerpScout/internal/handler/api"
	mid "PerpScout/internal/middleware"
	internalrepo "PerpScout/internal/repository"
	"PerpScout/internal/service/account"
	"PerpScout/internal/service/bybit"
	svccache "PerpScout/internal/service/cache"
	"PerpScout/internal/service/notify"
	"PerpScout/internal/service/ratelimit"
	"PerpScout/internal/services/indicators"
	"PerpScout/internal/services/mlfilter"
	"PerpScout/internal/services/risk"
	"PerpScout/internal/services/signal"
	"PerpScout/internal/usecase"
	pkgcache "PerpScout/pkg/cache"
	pkgch "PerpScout/pkg/clickhouse"
	"PerpScout/pkg/config"
	pkghttp "PerpScout/pkg/http"
	pkgkafka "PerpScout/pkg/kafka"
	applogger "PerpScout/pkg/logger"
	"PerpScout/pkg/metrics"
	pkgqueue "PerpScout/pkg/queue"
	"PerpScout/pkg/server"
)

// ProvideLogger creates the application logger. Production gets JSON
// for log shippers; everything else gets the console writer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level, format := "info", "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// block is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideCandleArchive creates the ClickHouse bar archive sink.
func ProvideCandleArchive(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) domrepo.CandleArchive {
	if chClient == nil || !cfg.Archive.Enabled {
		return nil
	}
	arch := internalrepo.NewCHCandleArchive(chClient, cfg.ClickHouse.Database)
	arch.SetLogger(log)
	return arch
}

// ProvideMarketData selects the candle source: the Bybit REST API for
// live runs, the ClickHouse archive for offline replays.
func ProvideMarketData(cfg *config.Config, chClient *pkgch.Client, log *applogger.Logger) (domrepo.MarketData, error) {
	if cfg.Market.Source == "clickhouse" {
		if chClient == nil {
			return nil, fmt.Errorf("market source clickhouse requires a clickhouse client")
		}
		arch := internalrepo.NewCHCandleArchive(chClient, cfg.ClickHouse.Database)
		arch.SetLogger(log)
		return arch, nil
	}
	return bybit.NewREST(bybit.Config{
		BaseURL: cfg.Market.BaseURL,
		Timeout: cfg.Market.Timeout,
		RPS:     cfg.Market.RPS,
		Burst:   cfg.Market.Burst,
	}, ratelimit.New()), nil
}

// ProvidePgPool creates the Postgres connection pool, or nil when the
// block is disabled.
func ProvidePgPool(cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	pc, err := pgxpool.ParseConfig(cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pc.MaxConns = cfg.Postgres.MaxConns
	pc.MinConns = cfg.Postgres.MinConns

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return pool, nil
}

// ProvideSignalStore creates the Postgres signal store and ensures its
// tables exist.
func ProvideSignalStore(pool *pgxpool.Pool) (domrepo.SignalStore, error) {
	if pool == nil {
		return nil, nil
	}
	store := internalrepo.NewPostgresSignalStore(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("signal store init: %w", err)
	}
	return store, nil
}

// ProvideRedisCache creates the shared Redis client used for the cycle
// lock, response caching and the notify queue. Nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideWinRates layers caching over the Postgres win-rate aggregates.
func ProvideWinRates(pool *pgxpool.Pool, redisCache *pkgcache.RedisCache, cfg *config.Config) domrepo.WinRateSource {
	if pool == nil {
		return nil
	}
	var shared svccache.BytesCache
	if redisCache != nil {
		shared = svccache.NewRedisCacheFromClient(redisCache.Client())
	}
	return internalrepo.NewCachedWinRates(internalrepo.NewPGWinRates(pool), shared, cfg.Filter.WinRateTTL)
}

// ProvideSignalFilter selects the filter implementation: the remote
// scorer when configured, otherwise the history filter when a win-rate
// source is available, the noop filter as the fallback.
func ProvideSignalFilter(cfg *config.Config, winRates domrepo.WinRateSource) domsvc.SignalFilter {
	if !cfg.Filter.Enabled {
		return mlfilter.NewNoopFilter()
	}
	fc := mlfilter.Config{
		AdjustmentCap: cfg.Filter.AdjustmentCap,
		VetoThreshold: cfg.Filter.VetoThreshold,
	}
	if cfg.Filter.Mode == "remote" {
		return mlfilter.NewRemoteFilter(fc, cfg.Filter.URL, cfg.Filter.Timeout)
	}
	if winRates == nil {
		return mlfilter.NewNoopFilter()
	}
	return mlfilter.NewHistoryFilter(fc, winRates)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the block
// is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideSignalPublisher creates the Kafka publisher for accepted
// recommendations.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML,
// or nil when the block is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartFrom(cfg.Kafka.Consumer.StartFrom),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideOutcomesHandler registers the handler for the trade-outcomes
// topic. Without a consumer or a store there is nothing to do.
func ProvideOutcomesHandler(consumer *pkgkafka.Consumer, store domrepo.SignalStore, m domrepo.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	if consumer == nil || store == nil {
		return nil
	}
	return usecase.NewOutcomesHandler(cfg.Kafka.OutcomesTopic, store, m)
}

// ProvideIndicatorEngine creates the indicator engine from the
// configured windows.
func ProvideIndicatorEngine(cfg *config.Config) *indicators.Engine {
	return indicators.NewEngine(indicators.Windows{
		EMAFast:    cfg.Indicators.EMAFast,
		EMASlow:    cfg.Indicators.EMASlow,
		SMA:        cfg.Indicators.SMA,
		RSI:        cfg.Indicators.RSI,
		MACDFast:   cfg.Indicators.MACDFast,
		MACDSlow:   cfg.Indicators.MACDSlow,
		MACDSignal: cfg.Indicators.MACDSignal,
		ATR:        cfg.Indicators.ATR,
		BBPeriod:   cfg.Indicators.BollingerPeriod,
		BBStdDev:   cfg.Indicators.BollingerStdDev,
	})
}

// ProvideAligner creates the horizon aligner.
func ProvideAligner(engine *indicators.Engine) *signal.Aligner {
	return signal.NewAligner(engine)
}

// ProvideClassifier creates the regime and style classifier.
func ProvideClassifier(cfg *config.Config) *signal.Classifier {
	return signal.NewClassifier(signal.RegimeConfig{
		BreakoutLookback:    cfg.Regime.BreakoutLookback,
		WidthWindow:         cfg.Regime.WidthWindow,
		PersistenceScalpMax: cfg.Regime.PersistenceScalpMax,
		PersistenceTrendMin: cfg.Regime.PersistenceTrendMin,
	})
}

// ProvideScorer creates the score model from the configured weights.
func ProvideScorer(cfg *config.Config) *signal.Scorer {
	return signal.NewScorer(signal.ScoreConfig{
		AgreementWeight: cfg.Score.Weights.Agreement,
		RSIWeight:       cfg.Score.Weights.RSI,
		MACDWeight:      cfg.Score.Weights.MACD,
		StyleWeight:     cfg.Score.Weights.Style,
		VolWeight:       cfg.Score.Weights.Volatility,
		PartialFactor:   cfg.Score.PartialFactor,
		SplitFactor:     cfg.Score.SplitFactor,
		RSISaturation:   cfg.Score.RSISaturation,
		VolLow:          cfg.Score.VolLow,
		VolHigh:         cfg.Score.VolHigh,
		MinScore:        cfg.Score.MinScore,
		MinConfidence:   cfg.Score.MinConfidence,
	})
}

// ProvideStructurer creates the trade structurer from the risk block.
func ProvideStructurer(cfg *config.Config) *risk.Structurer {
	return risk.NewStructurer(risk.Config{
		RiskFraction:          cfg.Risk.RiskFraction,
		StopATR:               cfg.Risk.StopATR,
		TakeATR:               cfg.Risk.TakeATR,
		TrailATR:              cfg.Risk.TrailATR,
		TrailActivation:       cfg.Risk.TrailActivation,
		MaintenanceMarginRate: cfg.Risk.MaintenanceMarginRate,
	})
}

// ProvideRanker creates the scan-result ranker.
func ProvideRanker() *signal.Ranker {
	return signal.NewRanker()
}

// ProvideAccountSource selects the account snapshot source.
func ProvideAccountSource(cfg *config.Config) domrepo.AccountSource {
	if cfg.Account.Source == "file" {
		return account.NewFile(cfg.Account.CapitalFile, cfg.Account.Leverage)
	}
	return account.NewStatic(cfg.Account.Equity, cfg.Account.Leverage)
}

// ProvideMarkPrices creates the shared mark-price cache. A mark older
// than the TTL is treated as unknown and sizing falls back to the bar
// close.
func ProvideMarkPrices() *svccache.MarkPrices {
	return svccache.NewMarkPrices(30 * time.Second)
}

// ProvideScanner assembles the per-instrument pipeline.
func ProvideScanner(
	cfg *config.Config,
	market domrepo.MarketData,
	prices *svccache.MarkPrices,
	acct domrepo.AccountSource,
	aligner *signal.Aligner,
	classifier *signal.Classifier,
	scorer *signal.Scorer,
	filter domsvc.SignalFilter,
	structurer *risk.Structurer,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.Scanner {
	return usecase.NewScanner(usecase.ScannerConfig{
		Short:         domrepo.Timeframe(cfg.Horizons.Short),
		Medium:        domrepo.Timeframe(cfg.Horizons.Medium),
		Long:          domrepo.Timeframe(cfg.Horizons.Long),
		CandleLimit:   cfg.Horizons.CandleLimit,
		MinVolume:     cfg.Gates.MinVolume,
		MinATRPct:     cfg.Gates.MinATRPct,
		RSILow:        cfg.Gates.RSILow,
		RSIHigh:       cfg.Gates.RSIHigh,
		MinScore:      cfg.Score.MinScore,
		MinConfidence: cfg.Score.MinConfidence,
		AdjustmentCap: cfg.Filter.AdjustmentCap,
	}, market, prices, acct, aligner, classifier, scorer, filter, structurer, m, log)
}

// ProvideNotifyQueue creates the Redis-backed delivery queue for
// digests, or nil when queueing is disabled.
func ProvideNotifyQueue(cfg *config.Config, redisCache *pkgcache.RedisCache, log *applogger.Logger) *pkgqueue.RedisQueue {
	if !cfg.Notify.QueueEnabled || redisCache == nil {
		return nil
	}
	return pkgqueue.NewRedisQueue(log, &pkgqueue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, redisCache.Client(), pkgqueue.ModeProducerConsumer,
		pkgqueue.WithKeyPrefix("perpscout:notify"))
}

// ProvideNotifier builds the digest fan-out from the configured
// channels. With a queue, delivery happens on queue workers with retry;
// without one, the dispatcher posts inline.
func ProvideNotifier(cfg *config.Config, q *pkgqueue.RedisQueue, log *applogger.Logger) (domrepo.Notifier, error) {
	var channels []domrepo.Notifier
	client := pkghttp.NewClient(pkghttp.WithTimeout(10 * time.Second))
	if cfg.Notify.Telegram.Enabled {
		channels = append(channels, notify.NewTelegram(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, client))
	}
	if cfg.Notify.Discord.Enabled {
		channels = append(channels, notify.NewDiscord(cfg.Notify.Discord.WebhookURL, client))
	}
	if len(channels) == 0 {
		return nil, nil
	}

	direct := notify.NewMulti(channels...)
	if q == nil {
		return direct, nil
	}
	q.RegisterJob(notify.NewDigestJob(direct))
	if err := q.Start(); err != nil {
		return nil, fmt.Errorf("notify queue start: %w", err)
	}
	return notify.NewQueued(q), nil
}

// ProvideDispatcher creates the dispatcher over the configured sinks.
func ProvideDispatcher(
	store domrepo.SignalStore,
	pub domrepo.Publisher,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalDispatcher {
	return usecase.NewSignalDispatcher(store, pub, notifier, m, log, cfg.Notify.TopN)
}

// ProvideScanEngine creates the scan engine. With Redis available the
// scan interval is coordinated across replicas through the cycle lock.
func ProvideScanEngine(
	cfg *config.Config,
	market domrepo.MarketData,
	scanner *usecase.Scanner,
	ranker *signal.Ranker,
	dispatcher *usecase.SignalDispatcher,
	m domrepo.Metrics,
	log *applogger.Logger,
	redisCache *pkgcache.RedisCache,
) *usecase.ScanEngine {
	eng := usecase.NewScanEngine(usecase.EngineConfig{
		MaxSymbols:   cfg.Scanner.MaxSymbols,
		Workers:      cfg.Scanner.Workers,
		ScanInterval: cfg.Scanner.ScanInterval,
	}, market, scanner, ranker, dispatcher, m, log)
	if redisCache != nil {
		eng.SetCycleLock(redisCache)
	}
	return eng
}

// ProvidePriceCollector creates the live mark-price collector. Offline
// runs over the archive have no stream to collect from.
func ProvidePriceCollector(cfg *config.Config, market domrepo.MarketData, prices *svccache.MarkPrices, m domrepo.Metrics) *usecase.PriceCollector {
	if cfg.Market.Source != "bybit" {
		return nil
	}
	stream := bybit.NewStream(cfg.Market.WSURL, cfg.Market.ReconnectDelay, cfg.Market.PingInterval)
	applier := usecase.NewTickApplier(prices, m)
	// Build middleware pipeline between WebSocket and the mark cache
	pipe := mid.NewTickPipeline(applier, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewPriceCollector(stream, market, applier, m, pipe, cfg.Scanner.MaxSymbols)
}

// ProvideHTTPHandler assembles the API handler with whatever optional
// backends are wired.
func ProvideHTTPHandler(
	engine *usecase.ScanEngine,
	store domrepo.SignalStore,
	archive domrepo.CandleArchive,
	redisCache *pkgcache.RedisCache,
	pool *pgxpool.Pool,
	chClient *pkgch.Client,
	log *applogger.Logger,
) pkghttp.Handler {
	h := api.NewScanHandler(engine)
	h.SetLogger(log)
	if store != nil {
		h.SetSignalStore(store)
	}
	if archive != nil {
		h.SetCandles(usecase.NewCandleReader(archive))
	}
	if redisCache != nil {
		layered := pkgcache.NewLayeredCache(redisCache,
			pkgcache.WithLayeredMemorySize(512),
			pkgcache.WithLayeredMemoryTTL(30*time.Second),
		)
		h.SetCache(svccache.NewLayeredBytes(layered))
	}
	if pool != nil {
		h.AddHealthProbe("postgres", pool.Ping)
	}
	if chClient != nil {
		h.AddHealthProbe("clickhouse", chClient.Health)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.ScanEngine,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	handler pkghttp.Handler,
	q *pkgqueue.RedisQueue,
) *server.App {
	// Thread trace ids from message headers through handling and log
	// handler failures with their position in the partition.
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				return pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km)), km, data, nil
			},
			Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
				log.Error("kafka handler failed",
					applogger.String("topic", topic),
					applogger.Int("partition", km.Partition),
					applogger.Int64("offset", km.Offset),
					applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
					applogger.Error(err),
				)
			},
		})
	}
	// Ship aggregated error-log digests when a producer is wired
	if producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	app := server.New(cfg, log, engine, collector, consumer, kh, chClient)
	app.Dispatcher = engine.Dispatcher()
	app.SetHTTPHandler(handler)
	if q != nil {
		app.SetQueue(q)
	}
	return app
}
