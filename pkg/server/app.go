package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"SybilScan/internal/usecase"
	"SybilScan/pkg/config"
	xhttp "SybilScan/pkg/http"
	pkgkafka "SybilScan/pkg/kafka"
	applogger "SybilScan/pkg/logger"
)

type closer struct {
	name string
	c    io.Closer
}

type sweeper struct {
	name  string
	every time.Duration
	fn    func() int
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handlers   []xhttp.Handler
	jobs       *usecase.JobManager
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server

	closers  []closer
	sweepers []sweeper
	wg       sync.WaitGroup
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handlers []xhttp.Handler,
	jobs *usecase.JobManager,
	consumer *pkgkafka.Consumer,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		l:        l,
		handlers: handlers,
		jobs:     jobs,
		consumer: consumer,
	}
}

// AddCloser registers a resource released after the job manager has drained.
// Closers run in registration order.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, closer{name: name, c: c})
	}
}

// AddSweeper registers a periodic cleanup run while the app is up.
func (a *App) AddSweeper(name string, every time.Duration, fn func() int) {
	if every <= 0 {
		every = time.Minute
	}
	a.sweepers = append(a.sweepers, sweeper{name: name, every: every, fn: fn})
}

// Jobs exposes the job manager, used by main for the startup warm-up.
func (a *App) Jobs() *usecase.JobManager { return a.jobs }

// Server returns the HTTP server, building it on first use.
func (a *App) Server() *xhttp.Server {
	if a.httpServer == nil {
		metricsPath := ""
		if a.cfg.Metrics.Enabled {
			metricsPath = a.cfg.Metrics.Path
		}
		a.httpServer = xhttp.NewServer(a.handlers,
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
			xhttp.WithMetricsPath(metricsPath),
			xhttp.WithCORS(a.cfg.Server.CORSOrigins...),
			xhttp.WithLogger(a.l),
		)
	}
	return a.httpServer
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, s := range a.sweepers {
		a.wg.Add(1)
		go a.sweep(ctx, s)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.Server().Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))

	cancel()
	return a.shutdown()
}

func (a *App) sweep(ctx context.Context, s sweeper) {
	defer a.wg.Done()
	t := time.NewTicker(s.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.fn(); n > 0 {
				a.l.Debug("sweep", applogger.String("name", s.name), applogger.Int("removed", n))
			}
		}
	}
}

// shutdown stops intake first, then drains running jobs, then releases the
// shared clients the sinks were publishing through.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server().Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.jobs.Shutdown(ctx); err != nil {
		a.l.Warn("job manager shutdown", applogger.Error(err))
	}

	a.wg.Wait()

	for _, c := range a.closers {
		if err := c.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	a.l.RemoveCollector()
	return nil
}
