package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"DeepInfo/internal/domain/models"
	icache "DeepInfo/internal/service/cache"
	pkgcache "DeepInfo/pkg/cache"
	applogger "DeepInfo/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	failed bool
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed {
		return false, errors.New("redis down")
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func TestPrefetchJobFetchesDefaultWindow(t *testing.T) {
	var got []models.FetchParams
	src := sourceFunc(func(_ context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
		got = append(got, p)
		return payloadWith(1), nil
	})
	fixed := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	charts, _ := newService(t, src, WithClock(func() time.Time { return fixed }))
	lock := &fakeLocker{held: map[string]bool{}}
	job := NewPrefetchJob(charts, src, lock, applogger.Nop())

	require.NoError(t, job.Handle(context.Background(), []byte(`{"base":"BTC","quote":"USD"}`)))
	require.Len(t, got, 1)
	assert.Equal(t, charts.DefaultParams("BTC", "USD"), got[0])
	assert.Empty(t, lock.held, "lock released")
	assert.Equal(t, PrefetchType, job.Type())
}

func TestPrefetchJobSkipsWhenLocked(t *testing.T) {
	calls := 0
	src := sourceFunc(func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		calls++
		return nil, nil
	})
	charts, _ := newService(t, src)
	lock := &fakeLocker{held: map[string]bool{"prefetch:BTC:USD": true}}
	job := NewPrefetchJob(charts, src, lock, applogger.Nop())

	require.NoError(t, job.Handle(context.Background(), PrefetchPayload{Base: "BTC", Quote: "USD"}))
	assert.Zero(t, calls)
}

func TestPrefetchJobErrors(t *testing.T) {
	src := sourceFunc(func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return nil, errors.New("timeout")
	})
	charts, _ := newService(t, src)

	job := NewPrefetchJob(charts, src, nil, applogger.Nop())
	assert.Error(t, job.Handle(context.Background(), PrefetchPayload{Base: "BTC"}))
	assert.ErrorContains(t, job.Handle(context.Background(), &PrefetchPayload{Base: "BTC", Quote: "USD"}), "prefetch BTC/USD")

	locked := NewPrefetchJob(charts, src, &fakeLocker{failed: true}, applogger.Nop())
	assert.ErrorContains(t, locked.Handle(context.Background(), PrefetchPayload{Base: "BTC", Quote: "USD"}), "prefetch lock")
}

func TestMountAfterPrefetchHitsCache(t *testing.T) {
	var upstream atomic.Int32
	src := sourceFunc(func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		upstream.Add(1)
		return payloadWith(4), nil
	})
	mem := pkgcache.NewMemoryCache()
	defer mem.Close()

	var now atomic.Int64
	now.Store(time.Date(2024, 5, 31, 12, 0, 7, 0, time.UTC).UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()).UTC() }

	m := &fakeMetrics{}
	cached := icache.NewCandleCache(src, mem, icache.TTLs{Intraday: time.Minute, Daily: time.Hour}, m, applogger.Nop())
	charts := NewChartService(cached, m, applogger.Nop(), WithClock(clock))
	t.Cleanup(charts.Close)

	job := NewPrefetchJob(charts, cached, nil, applogger.Nop())
	require.NoError(t, job.Handle(context.Background(), PrefetchPayload{Base: "BTC", Quote: "USD"}))

	now.Add(int64(41 * time.Second))
	frame, err := charts.Mount("BTC", "USD")
	require.NoError(t, err)
	f := waitFrame(t, charts, frame.SessionID, populated)

	assert.Equal(t, 4.0, f.Rows[0].VWA)
	assert.Equal(t, int32(1), upstream.Load())
	assert.Equal(t, int64(1), m.cacheHits.Load())
}
