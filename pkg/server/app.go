package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OptionsOracle/internal/usecase"
	"OptionsOracle/pkg/config"
	xhttp "OptionsOracle/pkg/http"
	pkgkafka "OptionsOracle/pkg/kafka"
	applogger "OptionsOracle/pkg/logger"
	"OptionsOracle/pkg/queue"
)

// Components are the long-running parts the App starts and stops. Exactly
// one of Collector and Consumer feeds the snapshot; the rest may be nil
// when disabled by configuration.
type Components struct {
	Loop      *usecase.OracleLoop
	Board     *usecase.StatusBoard
	Sampler   *usecase.SpotSampler
	Events    *usecase.EventProcessor
	Collector *usecase.TickCollector
	Consumer  *pkgkafka.Consumer
	Jobs      *queue.RedisQueue
	HTTP      *xhttp.Server
	// Closers are released last, in order.
	Closers []io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	Components
}

func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{cfg: cfg, log: log.Component("app"), Components: c}
}

// Run starts every component and blocks until SIGINT/SIGTERM, a fatal HTTP
// error or the decision loop exits.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.start(ctx); err != nil {
		a.shutdown(cancel, nil)
		return err
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.Loop.Run(ctx) }()
	a.log.Info("oracle started",
		applogger.String("mode", a.cfg.Mode),
		applogger.String("index", a.cfg.Strategy.Index),
		applogger.String("feed", a.cfg.Feed.Source),
		applogger.String("events", a.cfg.Events.Backend),
		applogger.Any("vix_breakpoints", []float64{
			a.cfg.Regime.VixUltraLow, a.cfg.Regime.VixNormalLow, a.cfg.Regime.VixSpiking, a.cfg.Regime.VixPanic,
		}),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case runErr = <-a.httpErrors():
		a.log.Error("http server failed", applogger.Error(runErr))
	case runErr = <-loopDone:
		a.log.Error("decision loop exited", applogger.Error(runErr))
		loopDone = nil
	}

	a.shutdown(cancel, loopDone)
	return runErr
}

func (a *App) httpErrors() <-chan error {
	if a.HTTP == nil {
		return nil
	}
	return a.HTTP.Errors()
}

func (a *App) start(ctx context.Context) error {
	if a.Board != nil {
		if err := a.Board.Restore(ctx); err != nil {
			a.log.Warn("status restore failed", applogger.Error(err))
		}
		go a.Board.Run(ctx)
	}
	if a.Events != nil {
		a.Events.Start(ctx)
	}
	if a.Jobs != nil {
		if err := a.Jobs.Start(ctx); err != nil {
			return err
		}
	}

	switch {
	case a.Collector != nil:
		if err := a.Collector.Start(ctx); err != nil {
			return err
		}
	case a.Consumer != nil:
		if err := a.Consumer.Start(); err != nil {
			return err
		}
	default:
		return errors.New("no tick source configured")
	}

	if a.Sampler != nil {
		go a.Sampler.Run(ctx)
	}
	if a.HTTP != nil {
		return a.HTTP.Start()
	}
	return nil
}

// shutdown stops intake first so the loop sees no new ticks, then the loop,
// then the sinks that still hold buffered events.
func (a *App) shutdown(cancel context.CancelFunc, loopDone <-chan error) {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, stop := context.WithTimeout(context.Background(), timeout)
	defer stop()

	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.Collector != nil {
		if err := a.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	cancel()
	if loopDone != nil {
		select {
		case err := <-loopDone:
			if err != nil {
				a.log.Warn("decision loop stopped with error", applogger.Error(err))
			}
		case <-ctx.Done():
			a.log.Warn("decision loop did not stop in time")
		}
	}

	if a.Jobs != nil {
		if err := a.Jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}
	// the log collector publishes through the producer the events close
	a.log.RemoveCollector()
	if a.Events != nil {
		if err := a.Events.Close(ctx); err != nil {
			a.log.Warn("event processor close error", applogger.Error(err))
		}
	}
	if a.Board != nil {
		if err := a.Board.Flush(ctx); err != nil {
			a.log.Warn("final status flush failed", applogger.Error(err))
		}
	}
	for _, c := range a.Closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
