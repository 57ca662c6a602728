package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PerpScout/internal/usecase"
	pkgch "PerpScout/pkg/clickhouse"
	"PerpScout/pkg/config"
	xhttp "PerpScout/pkg/http"
	pkgkafka "PerpScout/pkg/kafka"
	applogger "PerpScout/pkg/logger"
	pkgqueue "PerpScout/pkg/queue"
)

// appStopTimeout bounds the whole teardown so a wedged worker cannot
// keep the process alive after SIGTERM.
const appStopTimeout = 30 * time.Second

// App wires the long-running pieces together and owns their shutdown
// order.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	engine      *usecase.ScanEngine
	collector   *usecase.PriceCollector
	consumer    *pkgkafka.Consumer
	outcomes    pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
	queue       *pkgqueue.RedisQueue
	Dispatcher  *usecase.SignalDispatcher
}

// New assembles the application. Optional collaborators may be nil
// and are skipped at start.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.ScanEngine,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	outcomes pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		engine:    engine,
		collector: collector,
		consumer:  consumer,
		outcomes:  outcomes,
		chClient:  chClient,
	}
}

// SetHTTPHandler injects the API handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetQueue hands the notification queue to the lifecycle so shutdown
// drains its workers.
func (a *App) SetQueue(q *pkgqueue.RedisQueue) { a.queue = q }

// Run starts every wired component and blocks until SIGINT or
// SIGTERM, then tears them down in dependency order.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := a.log
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogger(l),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("price collector failed", applogger.Error(err))
			}
		}()
		l.Info("price collector running")
	}

	if a.consumer != nil && a.outcomes != nil {
		a.consumer.RegisterHandler(a.outcomes)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("outcome consumer failed", applogger.Error(err))
			}
		}()
		l.Info("outcome consumer running", applogger.String("topic", a.outcomes.Topic()))
	}

	go func() {
		if err := a.engine.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("scan engine failed", applogger.Error(err))
		}
	}()
	l.Info("scan engine running", applogger.Duration("interval_ms", a.cfg.Scanner.ScanInterval))

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server failed to start", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	stop()
	l.Info("signal received, shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), appStopTimeout)
	defer cancel()
	return a.shutdown(stopCtx, l)
}

// shutdown walks the components in reverse dependency order: sources
// first, sinks last, so nothing writes into a closed client.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("price collector stop", applogger.Error(err))
		}
	}

	httpCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(httpCtx); err != nil {
		l.Error("http server stop", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("outcome consumer stop", applogger.Error(err))
		}
	}

	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			l.Warn("notify queue stop", applogger.Error(err))
		}
	}

	// Flush aggregated log digests while the Kafka producer is open.
	if a.log != nil {
		a.log.RemoveCollector()
	}

	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
