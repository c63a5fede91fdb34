package scheduler

import (
	"context"
	"fmt"
	"time"

	"DeepInfo/internal/usecase"
	applogger "DeepInfo/pkg/logger"
	"DeepInfo/pkg/queue"

	"github.com/robfig/cron/v3"
)

// Pair is one BASE/QUOTE pair to warm.
type Pair struct {
	Base  string
	Quote string
}

// Prefetcher enqueues a default-window warm-up per configured pair on every cron tick.
type Prefetcher struct {
	cron  *cron.Cron
	queue queue.Publisher
	pairs []Pair
	l     *applogger.Logger
}

func NewPrefetcher(q queue.Publisher, pairs []Pair, l *applogger.Logger) *Prefetcher {
	return &Prefetcher{
		cron:  cron.New(cron.WithSeconds()),
		queue: q,
		pairs: pairs,
		l:     l,
	}
}

// Register adds the prefetch task under a six-field cron spec.
func (p *Prefetcher) Register(spec string) error {
	if _, err := p.cron.AddFunc(spec, p.tick); err != nil {
		return fmt.Errorf("register prefetch task: %w", err)
	}
	return nil
}

func (p *Prefetcher) Start() {
	p.cron.Start()
	p.l.Info("prefetch scheduler started", applogger.Int("pairs", len(p.pairs)))
}

// Stop waits for a running tick to finish or ctx to expire.
func (p *Prefetcher) Stop(ctx context.Context) {
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
	p.l.Info("prefetch scheduler stopped")
}

// RunNow enqueues the warm-ups immediately.
func (p *Prefetcher) RunNow(ctx context.Context) int {
	n := 0
	for _, pair := range p.pairs {
		err := p.queue.PublishMessage(ctx, usecase.PrefetchType, usecase.PrefetchPayload{Base: pair.Base, Quote: pair.Quote})
		if err != nil {
			p.l.Error("enqueue prefetch failed",
				applogger.String("base", pair.Base),
				applogger.String("quote", pair.Quote),
				applogger.Error(err),
			)
			continue
		}
		n++
	}
	return n
}

func (p *Prefetcher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := p.RunNow(ctx)
	p.l.Debug("prefetch enqueued", applogger.Int("jobs", n))
}
