package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "ChurnScope/internal/middleware"
	"ChurnScope/internal/service/ratelimit"
	"ChurnScope/pkg/config"
	xhttp "ChurnScope/pkg/http"
	pkgkafka "ChurnScope/pkg/kafka"
	applogger "ChurnScope/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter buckets idle this long are swept.
const (
	limiterSweepEvery = time.Minute
	limiterIdle       = 10 * time.Minute
)

type closer struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	audit      *mid.AuditPipeline
	limiter    *ratelimit.Limiter
	closers    []closer
	signals    chan os.Signal
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	model      string
}

type Option func(*App)

// WithConsumer runs consumer with the given handlers. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c != nil {
			a.consumer = c
			a.handlers = append(a.handlers, handlers...)
		}
	}
}

// WithModelVersion records the version of the model being served.
func WithModelVersion(v string) Option {
	return func(a *App) { a.model = v }
}

func WithAudit(p *mid.AuditPipeline) Option {
	return func(a *App) { a.audit = p }
}

// WithLimiter periodically sweeps idle limiter buckets while the app runs.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithRegistry serves HTTP metrics from reg instead of the default registry.
func WithRegistry(reg prometheus.Registerer, gat prometheus.Gatherer) Option {
	return func(a *App) {
		a.registerer = reg
		a.gatherer = gat
	}
}

// WithCloser registers a resource closed at shutdown, after every worker has
// stopped. Closers run in registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, closer{name: name, c: c})
		}
	}
}

// New creates a new App serving handler over HTTP.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		cfg:        cfg,
		log:        log,
		signals:    make(chan os.Signal, 1),
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(a)
	}

	serverOpts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		serverOpts = append(serverOpts, xhttp.WithMetrics(cfg.Metrics.Path, a.registerer, a.gatherer))
	} else {
		serverOpts = append(serverOpts, xhttp.WithMetrics("", nil, nil))
	}
	a.httpServer = xhttp.NewServer(handler, log, serverOpts...)
	return a
}

// HTTP exposes the server, mainly for tests.
func (a *App) HTTP() *xhttp.Server { return a.httpServer }

// ModelVersion is the version of the model this App serves.
func (a *App) ModelVersion() string { return a.model }

// Run starts the application and blocks until interrupted or until the HTTP
// listener fails.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.audit != nil {
		a.audit.Start(ctx)
		a.log.Info("audit pipeline started")
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		a.consumer.WithConsumerHook(pkgkafka.RequestIDHook())
		if err := a.consumer.Start(); err != nil {
			a.shutdown(ctx)
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	if err := a.httpServer.Start(); err != nil {
		a.shutdown(ctx)
		return err
	}
	a.log.Info("serving churn predictions", applogger.String("model_version", a.model))

	signal.Notify(a.signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(a.signals)

	var runErr error
	select {
	case sig := <-a.signals:
		a.log.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case err := <-a.httpServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.shutdown(ctx)
	return runErr
}

// Shutdown asks a running App to stop as if it had received SIGTERM.
func (a *App) Shutdown() {
	select {
	case a.signals <- syscall.SIGTERM:
	default:
	}
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(limiterIdle); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("buckets", n))
			}
		}
	}
}

// shutdown stops intake first, then drains workers, then closes clients.
func (a *App) shutdown(ctx context.Context) {
	a.log.Info("shutting down...")
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := a.httpServer.Stop(stopCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.audit != nil {
		if err := a.audit.Stop(stopCtx); err != nil {
			a.log.Warn("audit pipeline stop error", applogger.Error(err))
		}
	}

	// flush collected error logs while the producer is still open
	a.log.RemoveCollector()

	var errs []error
	for _, c := range a.closers {
		if err := c.c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
}
