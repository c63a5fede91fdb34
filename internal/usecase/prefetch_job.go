package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "DeepInfo/internal/domain/repository"
	applogger "DeepInfo/pkg/logger"
	"DeepInfo/pkg/queue"
)

// PrefetchType is the queue message type of a default-window warm-up.
const PrefetchType = "chart.prefetch"

// PrefetchPayload names the pair to warm.
type PrefetchPayload struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// Locker guards a prefetch so concurrent workers do not warm the same pair twice.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// PrefetchJob fetches the mount-time window of a pair through the cached source,
// so the first viewer is served from cache.
type PrefetchJob struct {
	charts *ChartService
	source domrepo.CandleSource
	lock   Locker
	l      *applogger.Logger
}

func NewPrefetchJob(charts *ChartService, source domrepo.CandleSource, lock Locker, l *applogger.Logger) *PrefetchJob {
	return &PrefetchJob{charts: charts, source: source, lock: lock, l: l}
}

func (j *PrefetchJob) Name() string { return "prefetch-default-window" }

func (j *PrefetchJob) Type() string { return PrefetchType }

func (j *PrefetchJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[PrefetchPayload](payload)
	if err != nil {
		return err
	}
	if p.Base == "" || p.Quote == "" {
		return fmt.Errorf("prefetch: base and quote are required")
	}

	if j.lock != nil {
		key := "prefetch:" + p.Base + ":" + p.Quote
		ok, err := j.lock.TryLock(ctx, key, time.Minute)
		if err != nil {
			return fmt.Errorf("prefetch lock: %w", err)
		}
		if !ok {
			j.l.Debug("prefetch already running", applogger.String("base", p.Base), applogger.String("quote", p.Quote))
			return nil
		}
		defer func() { _ = j.lock.Unlock(context.Background(), key) }()
	}

	params := j.charts.DefaultParams(p.Base, p.Quote)
	start := time.Now()
	if _, err := j.source.Fetch(ctx, params); err != nil {
		return fmt.Errorf("prefetch %s/%s: %w", p.Base, p.Quote, err)
	}
	j.l.Info("prefetch done",
		applogger.String("base", p.Base),
		applogger.String("quote", p.Quote),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

var _ queue.Job = (*PrefetchJob)(nil)
