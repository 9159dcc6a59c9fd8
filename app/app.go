package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/searchktools/webpp/config"
	"github.com/searchktools/webpp/core"
	"github.com/searchktools/webpp/core/middleware"
	"github.com/searchktools/webpp/core/observability"
)

// App is a configured server with its logger and performance monitor
type App struct {
	cfg     config.Config
	log     *logrus.Logger
	engine  *core.Engine
	monitor *observability.PerformanceMonitor
}

// New creates an application instance
func New(cfg config.Config, log *logrus.Logger) (*App, error) {
	if log == nil {
		log = logrus.New()
	}
	if err := cfg.Logging.Apply(log); err != nil {
		return nil, err
	}
	opts, err := cfg.Server.EngineOptions()
	if err != nil {
		return nil, err
	}

	monitor := observability.NewPerformanceMonitor(0, observability.DefaultThresholds)
	engine := core.NewEngine(
		core.WithOptions(opts),
		core.WithLogger(log),
		core.WithExceptionHandler(func(err error) {
			log.WithError(err).Warn("Request failed")
		}),
	)
	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Metrics(monitor),
	)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		engine.Use(middleware.Logger(log))
	}

	return &App{cfg: cfg, log: log, engine: engine, monitor: monitor}, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Monitor returns the per-route statistics
func (a *App) Monitor() *observability.PerformanceMonitor {
	return a.monitor
}

// Run serves until ctx is done or SIGINT/SIGTERM arrives, then stops the
// engine and waits for its connections.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.engine.Listen(); err != nil {
		return err
	}

	served := make(chan error, 1)
	go func() { served <- a.engine.Serve() }()

	select {
	case err := <-served:
		a.shutdown()
		return err
	case <-ctx.Done():
		a.log.Info("Shutting down")
		a.shutdown()
		return <-served
	}
}

func (a *App) shutdown() {
	a.engine.Stop()
	a.monitor.Stop()
	for _, b := range a.monitor.Analyze() {
		a.log.WithFields(logrus.Fields{
			"route": b.Location,
			"type":  b.Type,
		}).Warn(b.Details)
	}
}
