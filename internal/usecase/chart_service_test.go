package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"DeepInfo/internal/domain/models"
	applogger "DeepInfo/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadWith(open float64) *models.CurrencyPayload {
	return &models.CurrencyPayload{
		Reference:  []models.MarketSeries{series("vwa:BTC:USD", t0, 3600, open, open)},
		Comparison: []models.MarketSeries{series("binance:BTC:USD", t0, 3600, open)},
	}
}

func newService(t *testing.T, src sourceFunc, opts ...ServiceOption) (*ChartService, *fakeMetrics) {
	t.Helper()
	m := &fakeMetrics{}
	s := NewChartService(src, m, applogger.Nop(), opts...)
	t.Cleanup(s.Close)
	return s, m
}

func waitFrame(t *testing.T, s *ChartService, id string, cond func(models.ChartFrame) bool) models.ChartFrame {
	t.Helper()
	var last models.ChartFrame
	require.Eventually(t, func() bool {
		f, err := s.Render(id)
		if err != nil {
			return false
		}
		last = f
		return cond(f)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func populated(f models.ChartFrame) bool { return f.State == models.StatePopulated }

func TestMountStartsLoadingThenPopulates(t *testing.T) {
	var got models.FetchParams
	var mu sync.Mutex
	s, _ := newService(t, func(_ context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
		mu.Lock()
		got = p
		mu.Unlock()
		return payloadWith(5), nil
	})

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	assert.NotEmpty(t, frame.SessionID)
	assert.Equal(t, models.StateLoading, frame.State)
	assert.Equal(t, uint64(1), frame.Generation)

	f := waitFrame(t, s, frame.SessionID, populated)
	assert.Equal(t, 5.0, f.Rows[0].VWA)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "BTC", got.CurrencySymbol)
	assert.Equal(t, "USD", got.QuoteSymbol)
	assert.Equal(t, "_1d", got.Resolution)
	assert.Equal(t, f.Window.EndTime/1000, got.EndTime)
}

func TestMountRejectsMissingSymbols(t *testing.T) {
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	})
	_, err := s.Mount("", "USD")
	assert.ErrorIs(t, err, ErrInvalidPair)
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	s, m := newService(t, func(_ context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
		if p.Resolution == "_1d" {
			<-release
			return payloadWith(1), nil
		}
		return payloadWith(2), nil
	})

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID

	upd, err := s.SetResolution(id, "_1h")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), upd.Generation)

	f := waitFrame(t, s, id, populated)
	assert.Equal(t, 2.0, f.Rows[0].VWA)

	close(release)
	require.Eventually(t, func() bool { return m.stale.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	f, err = s.Render(id)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.Rows[0].VWA)
	assert.Equal(t, "_1h", f.Resolution.Value)
}

func TestFetchErrorKeepsPreviousPayload(t *testing.T) {
	var calls atomic.Int32
	s, m := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		if calls.Add(1) == 1 {
			return payloadWith(7), nil
		}
		return nil, errors.New("upstream down")
	})

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID
	waitFrame(t, s, id, populated)

	_, err = s.SetResolution(id, "_4h")
	require.NoError(t, err)

	f := waitFrame(t, s, id, func(f models.ChartFrame) bool { return f.Error != "" })
	assert.Equal(t, "upstream down", f.Error)
	assert.Equal(t, models.StatePopulated, f.State)
	assert.Equal(t, 7.0, f.Rows[0].VWA)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Contains(t, m.errors, "fetch")
}

func TestInvalidEditsAreSilent(t *testing.T) {
	var calls atomic.Int32
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		calls.Add(1)
		return payloadWith(1), nil
	})
	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID
	waitFrame(t, s, id, populated)

	f, err := s.SetStartTime(id, frame.Window.EndTime)
	require.NoError(t, err)
	assert.Equal(t, frame.Window, f.Window)

	f, err = s.SetResolution(id, "_1d")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Generation)

	_, err = s.SetResolution(id, "_3d")
	assert.ErrorIs(t, err, ErrUnknownResolution)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscribeReceivesLegendChanges(t *testing.T) {
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	})
	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID
	waitFrame(t, s, id, populated)

	ch, unsub, err := s.Subscribe(id)
	require.NoError(t, err)
	defer unsub()

	_, err = s.Toggle(id, "binance")
	require.NoError(t, err)

	timeout := time.After(time.Second)
	for {
		select {
		case f := <-ch:
			if f.Highlight != "binance" {
				continue
			}
			require.Len(t, f.Series, 3)
			assert.True(t, f.Series[2].Visible)
			return
		case <-timeout:
			t.Fatalf("no frame after toggle")
		}
	}
}

func TestUnmountClosesSubscribers(t *testing.T) {
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	})
	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	ch, _, err := s.Subscribe(frame.SessionID)
	require.NoError(t, err)

	require.NoError(t, s.Unmount(frame.SessionID))
	for range ch {
	}

	_, err = s.Render(frame.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Unmount(frame.SessionID), ErrSessionNotFound)
}

func TestIdleSessionsExpire(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()).UTC() }

	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	}, WithClock(clock), WithIdleTTL(time.Minute))

	idle, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	now.Add(int64(45 * time.Second))
	busy, err := s.Mount("ETH", "USD")
	require.NoError(t, err)

	now.Add(int64(30 * time.Second))
	s.expireIdle()

	_, err = s.Render(idle.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Render(busy.SessionID)
	assert.NoError(t, err)
}

func TestSubscribedSessionsOutliveIdleTTL(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()).UTC() }

	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	}, WithClock(clock), WithIdleTTL(time.Minute))

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	_, unsub, err := s.Subscribe(frame.SessionID)
	require.NoError(t, err)

	now.Add(int64(2 * time.Minute))
	s.expireIdle()
	s.mu.RLock()
	_, alive := s.sessions[frame.SessionID]
	s.mu.RUnlock()
	require.True(t, alive, "watched session expired")

	unsub()
	now.Add(int64(30 * time.Second))
	s.expireIdle()
	s.mu.RLock()
	_, alive = s.sessions[frame.SessionID]
	s.mu.RUnlock()
	assert.True(t, alive, "idle clock restarts when the last subscriber leaves")

	now.Add(int64(31 * time.Second))
	s.expireIdle()
	_, err = s.Render(frame.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []models.FetchParams
	gens  []uint64
}

func (p *recordingPublisher) PublishParamUpdate(_ context.Context, _ string, gen uint64, params models.FetchParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, params)
	p.gens = append(p.gens, gen)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestAcceptedEditsArePublished(t *testing.T) {
	pub := &recordingPublisher{}
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return payloadWith(1), nil
	}, WithPublisher(pub))

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	newStart := frame.Window.EndTime - 10*86400*1000
	_, err = s.SetStartTime(frame.SessionID, newStart)
	require.NoError(t, err)
	_, err = s.SetStartTime(frame.SessionID, frame.Window.EndTime)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.calls) > 0
	}, time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.calls, 1)
	assert.Equal(t, newStart/1000, pub.calls[0].StartTime)
	assert.Equal(t, uint64(2), pub.gens[0])
}

func TestChartValidatesWindow(t *testing.T) {
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return nil, nil
	})

	_, _, err := s.Chart(context.Background(), models.FetchParams{Resolution: "_3d", StartTime: 0, EndTime: 10})
	assert.ErrorIs(t, err, ErrUnknownResolution)

	_, _, err = s.Chart(context.Background(), models.FetchParams{Resolution: "_1h", StartTime: t0, EndTime: t0 + 3600})
	assert.ErrorIs(t, err, ErrWindowTooShort)

	frame, payload, err := s.Chart(context.Background(), models.FetchParams{Resolution: "_1h", StartTime: t0, EndTime: t0 + 7200})
	require.NoError(t, err)
	assert.NotNil(t, payload)
	assert.Equal(t, models.StateEmpty, frame.State)

	capped, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		return nil, nil
	}, WithMaxCandles(10))
	_, _, err = capped.Chart(context.Background(), models.FetchParams{Resolution: "_1h", StartTime: t0, EndTime: t0 + 11*3600})
	assert.ErrorIs(t, err, ErrWindowTooLong)
	_, _, err = capped.Chart(context.Background(), models.FetchParams{Resolution: "_1h", StartTime: t0, EndTime: t0 + 10*3600})
	assert.NoError(t, err)
}

func TestSessionEditsRespectMaxCandles(t *testing.T) {
	var calls atomic.Int32
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		calls.Add(1)
		return payloadWith(1), nil
	}, WithMaxCandles(200))
	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID
	waitFrame(t, s, id, populated)

	f, err := s.SetStartTime(id, frame.Window.EndTime-300*86400*1000)
	require.NoError(t, err)
	assert.Equal(t, frame.Window, f.Window)
	assert.Equal(t, uint64(1), f.Generation)

	f, err = s.SetEndTime(id, frame.Window.StartTime+300*86400*1000)
	require.NoError(t, err)
	assert.Equal(t, frame.Window, f.Window)
	assert.Equal(t, int32(1), calls.Load())

	f, err = s.SetStartTime(id, frame.Window.EndTime-150*86400*1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Generation)
}

type slowPublisher struct {
	delay time.Duration
	done  atomic.Int32
}

func (p *slowPublisher) PublishParamUpdate(context.Context, string, uint64, models.FetchParams) error {
	time.Sleep(p.delay)
	p.done.Add(1)
	return nil
}

func (p *slowPublisher) Close() error { return nil }

func TestSubscriberReceivesFetchedFrameLast(t *testing.T) {
	var calls atomic.Int32
	pub := &slowPublisher{delay: 50 * time.Millisecond}
	s, _ := newService(t, func(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
		if calls.Add(1) == 1 {
			return payloadWith(5), nil
		}
		return payloadWith(7), nil
	}, WithPublisher(pub))

	frame, err := s.Mount("BTC", "USD")
	require.NoError(t, err)
	id := frame.SessionID
	waitFrame(t, s, id, populated)

	ch, unsub, err := s.Subscribe(id)
	require.NoError(t, err)
	defer unsub()

	_, err = s.SetStartTime(id, frame.Window.EndTime-10*86400*1000)
	require.NoError(t, err)
	assert.Zero(t, pub.done.Load(), "edit returned before the publisher finished")

	var got []float64
	var last models.ChartFrame
	quiet := time.NewTimer(300 * time.Millisecond)
	defer quiet.Stop()
collect:
	for {
		select {
		case f := <-ch:
			last = f
			got = append(got, f.Rows[0].VWA)
		case <-quiet.C:
			break collect
		}
	}

	assert.Equal(t, []float64{5, 7}, got)
	cur, err := s.Render(id)
	require.NoError(t, err)
	assert.Equal(t, cur.Generation, last.Generation)
	assert.Equal(t, 7.0, last.Rows[0].VWA)
}
