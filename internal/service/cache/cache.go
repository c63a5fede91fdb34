package cache

import (
	"context"
	"errors"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	pkgcache "DeepInfo/pkg/cache"
	applogger "DeepInfo/pkg/logger"
)

const keyPrefix = "candles"

// TTLs picks payload lifetime by resolution.
type TTLs struct {
	Intraday time.Duration
	Daily    time.Duration
}

// For returns the TTL for a resolution value. Unknown values get the intraday TTL.
func (t TTLs) For(resolution string) time.Duration {
	r, ok := domrepo.FindResolution(resolution)
	if !ok || r.Seconds < 86400 {
		return t.Intraday
	}
	return t.Daily
}

// CandleCache serves repeated fetches of the same window from a cache.Service.
type CandleCache struct {
	next    domrepo.CandleSource
	store   pkgcache.Service
	ttl     TTLs
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewCandleCache(next domrepo.CandleSource, store pkgcache.Service, ttl TTLs, metrics domrepo.Metrics, l *applogger.Logger) *CandleCache {
	return &CandleCache{next: next, store: store, ttl: ttl, metrics: metrics, l: l}
}

// Key builds the cache key of a fetch. Start and end are widened to whole buckets
// of the resolution, so windows that select the same candles share a key.
func Key(p models.FetchParams) string {
	start, end := p.StartTime, p.EndTime
	if r, ok := domrepo.FindResolution(p.Resolution); ok && r.Seconds > 0 {
		start = bucketFloor(start, r.Seconds)
		end = bucketFloor(end+r.Seconds-1, r.Seconds)
	}
	return pkgcache.GenerateKeyWithParams(keyPrefix,
		p.CurrencySymbol, p.QuoteSymbol, p.Resolution, start, end)
}

func bucketFloor(ts, size int64) int64 {
	b := ts / size
	if ts%size != 0 && ts < 0 {
		b--
	}
	return b * size
}

func (c *CandleCache) Fetch(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
	key := Key(p)
	cached, err := pkgcache.GetTyped[models.CurrencyPayload](ctx, c.store, key)
	if err == nil {
		c.metrics.RecordCache(true)
		return &cached, nil
	}
	if !errors.Is(err, pkgcache.ErrCacheMiss) {
		c.l.Warn("candle cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	c.metrics.RecordCache(false)

	payload, err := c.next.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	// empty payloads are not cached; the pair may be listed soon
	if payload.Empty() {
		return payload, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl.For(p.Resolution)); err != nil {
		c.l.Warn("candle cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return payload, nil
}

var _ domrepo.CandleSource = (*CandleCache)(nil)
