package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DeepInfo/internal/scheduler"
	"DeepInfo/internal/service/ratelimit"
	"DeepInfo/internal/usecase"
	"DeepInfo/pkg/config"
	xhttp "DeepInfo/pkg/http"
	pkgkafka "DeepInfo/pkg/kafka"
	applogger "DeepInfo/pkg/logger"
	pkgqueue "DeepInfo/pkg/queue"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	charts     *usecase.ChartService

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler

	queue      *pkgqueue.RedisQueue
	prefetcher *scheduler.Prefetcher

	limiter   *ratelimit.Limiter
	limitIdle time.Duration

	collector *applogger.CollectionConfig
	closers   []closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server, charts *usecase.ChartService) *App {
	return &App{cfg: cfg, l: l, httpServer: httpServer, charts: charts}
}

// WithConsumer attaches the candle ingest consumer.
func (a *App) WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// WithQueue attaches the prefetch queue and its scheduler.
func (a *App) WithQueue(q *pkgqueue.RedisQueue, pf *scheduler.Prefetcher) {
	a.queue = q
	a.prefetcher = pf
}

// WithRateLimiter prunes client buckets idle for longer than idle while the app runs.
func (a *App) WithRateLimiter(l *ratelimit.Limiter, idle time.Duration) {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	a.limiter = l
	a.limitIdle = idle
}

// WithLogCollector ships aggregated error logs while the app runs.
func (a *App) WithLogCollector(cfg *applogger.CollectionConfig) { a.collector = cfg }

// AddCloser registers a resource closed last on shutdown, in reverse order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.collector != nil {
		a.l.AddCollector(a.collector)
		a.l.Info("log collector started", applogger.String("topic", a.collector.Topic))
	}

	go a.charts.Run(ctx)
	if a.limiter != nil {
		go a.limiter.Run(ctx, a.limitIdle/2, a.limitIdle)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return a.shutdown(err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return a.shutdown(err)
		}
		if a.prefetcher != nil {
			a.prefetcher.Start()
			a.prefetcher.RunNow(ctx)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return a.shutdown(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(nil)
}

// shutdown stops producers of work first, then the services they feed. cause is
// returned unchanged.
func (a *App) shutdown(cause error) error {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	if a.prefetcher != nil {
		a.prefetcher.Stop(ctx)
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.charts.Close()

	// flush aggregated logs while the producer is still open
	if a.collector != nil {
		a.l.RemoveCollector()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return cause
}
