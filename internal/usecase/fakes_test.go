package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"DeepInfo/internal/domain/models"
)

type sourceFunc func(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error)

func (f sourceFunc) Fetch(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
	return f(ctx, p)
}

type fakeMetrics struct {
	stale     atomic.Int64
	ingested  atomic.Int64
	cacheHits atomic.Int64
	mu       sync.Mutex
	errors   []string
}

func (m *fakeMetrics) RecordFetch(string, error, time.Duration) {}
func (m *fakeMetrics) RecordStaleDiscard()                      { m.stale.Add(1) }
func (m *fakeMetrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	}
}
func (m *fakeMetrics) RecordRender(models.RenderState)          {}
func (m *fakeMetrics) RecordSessions(int)                       {}
func (m *fakeMetrics) RecordIngested(n int)                     { m.ingested.Add(int64(n)) }
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

func series(symbol string, start, step int64, opens ...float64) models.MarketSeries {
	s := models.MarketSeries{MarketSymbol: symbol}
	for i, o := range opens {
		s.Timeseries = append(s.Timeseries, models.Candle{StartUnix: start + int64(i)*step, Open: o, Volume: float64(i + 1)})
	}
	return s
}
