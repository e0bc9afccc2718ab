package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PairScan/internal/domain/repository"
	"PairScan/internal/plugin"
	"PairScan/internal/usecase"
	pkgcache "PairScan/pkg/cache"
	"PairScan/pkg/config"
	xhttp "PairScan/pkg/http"
	pkgkafka "PairScan/pkg/kafka"
	applogger "PairScan/pkg/logger"
)

// App encapsulates the entire application lifecycle: the scheduler loop
// driving orchestrator cycles, the optional ticker stream and verdict
// consumer, and the HTTP server.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	orch      *plugin.Orchestrator
	collector *usecase.TickerCollector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	store     domrepo.CandleStore
	publisher domrepo.SignalPublisher

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	// locker, when set, serializes cycles across replicas so only one
	// instance burns the API budget at a time.
	locker pkgcache.Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	orch *plugin.Orchestrator,
	collector *usecase.TickerCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	store domrepo.CandleStore,
	publisher domrepo.SignalPublisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		orch:      orch,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		store:     store,
		publisher: publisher,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetCycleLock installs a distributed lock guarding cycle execution.
func (a *App) SetCycleLock(c pkgcache.Service) { a.locker = c }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.store != nil {
		if err := a.store.Init(ctx); err != nil {
			return err
		}
	}

	if err := a.orch.Init(ctx); err != nil {
		a.log.Warn("some units failed to init", applogger.Error(err))
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("ticker collector error", applogger.Error(err))
			}
		}()
		a.log.Info("ticker collector started", applogger.Strings("symbols", a.cfg.Exchange.Symbols))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	cycleDone := make(chan struct{})
	go a.scheduleCycles(ctx, cycleDone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")

	// let the in-flight cycle drain its completed work before tearing the
	// rest down
	a.orch.RequestCancellation()
	cancel()
	select {
	case <-cycleDone:
	case <-time.After(a.cfg.Server.ShutdownTimeout):
		a.log.Warn("cycle did not drain in time")
	}

	return a.shutdown(context.Background())
}

// scheduleCycles runs orchestrator cycles at the configured interval until
// the context is cancelled. Cycles never overlap; a slow cycle delays the
// next tick instead of stacking.
func (a *App) scheduleCycles(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.Scheduler.CycleInterval)
	defer ticker.Stop()

	// first cycle immediately
	a.runLockedCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runLockedCycle(ctx)
		}
	}
}

const cycleLockKey = "pipeline:cycle"

func (a *App) runLockedCycle(ctx context.Context) {
	if a.locker != nil {
		ok, err := a.locker.TryLock(ctx, cycleLockKey, a.cfg.Scheduler.CycleInterval)
		if err != nil {
			a.log.Warn("cycle lock error, running unguarded", applogger.Error(err))
		} else if !ok {
			a.log.Debug("cycle lock held elsewhere, skipping")
			return
		} else {
			defer func() {
				if err := a.locker.Unlock(ctx, cycleLockKey); err != nil {
					a.log.Warn("cycle unlock error", applogger.Error(err))
				}
			}()
		}
	}
	a.orch.RunCycle(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.orch.Shutdown(ctx); err != nil {
		a.log.Warn("orchestrator shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.RemoveCollector()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
