package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	applogger "DeepInfo/pkg/logger"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("chart session not found")

// ErrUnknownResolution is returned when a resolution value is not in the registry.
var ErrUnknownResolution = errors.New("unknown resolution")

// ErrWindowTooShort is returned when a window does not span more than one candle.
var ErrWindowTooShort = errors.New("window must span more than one candle")

// ErrWindowTooLong is returned when a window spans more candles than the service serves.
var ErrWindowTooLong = errors.New("window spans too many candles")

// ErrInvalidPair is returned when base or quote is missing.
var ErrInvalidPair = errors.New("base and quote are required")

// ChartService owns chart sessions and runs their fetches.
type ChartService struct {
	source    domrepo.CandleSource
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger

	mode         JoinMode
	fetchTimeout time.Duration
	idleTTL      time.Duration
	maxCandles   int64
	subBuffer    int
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*ChartView
}

// ServiceOption configures ChartService.
type ServiceOption func(*ChartService)

// WithJoinMode sets how comparison series are aligned.
func WithJoinMode(m JoinMode) ServiceOption {
	return func(s *ChartService) { s.mode = m }
}

// WithFetchTimeout bounds a single data source call.
func WithFetchTimeout(d time.Duration) ServiceOption {
	return func(s *ChartService) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithIdleTTL sets how long an untouched session lives.
func WithIdleTTL(d time.Duration) ServiceOption {
	return func(s *ChartService) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithMaxCandles caps how many candles one window may span. Zero disables the cap.
func WithMaxCandles(n int64) ServiceOption {
	return func(s *ChartService) {
		if n >= 0 {
			s.maxCandles = n
		}
	}
}

// WithPublisher attaches a chart event publisher.
func WithPublisher(p domrepo.EventPublisher) ServiceOption {
	return func(s *ChartService) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ChartService) { s.now = now }
}

// NewChartService creates the service. Call Close to stop in-flight fetches.
func NewChartService(source domrepo.CandleSource, metrics domrepo.Metrics, l *applogger.Logger, opts ...ServiceOption) *ChartService {
	s := &ChartService{
		source:       source,
		metrics:      metrics,
		l:            l,
		mode:         JoinPositional,
		fetchTimeout: 15 * time.Second,
		idleTTL:      30 * time.Minute,
		maxCandles:   DefaultMaxCandles,
		subBuffer:    8,
		now:          time.Now,
		sessions:     make(map[string]*ChartView),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Mount creates a session at the default state and starts its first fetch.
func (s *ChartService) Mount(base, quote string) (models.ChartFrame, error) {
	if base == "" || quote == "" {
		return models.ChartFrame{}, ErrInvalidPair
	}
	st := DefaultChartState(s.now())
	st.MaxCandles = s.maxCandles
	v := newChartView(uuid.NewString(), base, quote, st, s.mode, s.now())

	s.mu.Lock()
	s.sessions[v.id] = v
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.RecordSessions(n)

	v.mu.Lock()
	ctx, gen := v.begin(s.ctx, s.fetchTimeout)
	params := v.params
	frame := v.render()
	v.mu.Unlock()

	s.dispatch(ctx, v, gen, params)
	s.l.Info("chart session mounted",
		applogger.String("session", v.id),
		applogger.String("base", base),
		applogger.String("quote", quote),
	)
	return frame, nil
}

// Render returns the current frame of a session.
func (s *ChartService) Render(id string) (models.ChartFrame, error) {
	v, err := s.get(id)
	if err != nil {
		return models.ChartFrame{}, err
	}
	return v.Render(), nil
}

// SetStartTime moves the window start of a session (epoch ms).
func (s *ChartService) SetStartTime(id string, startMs int64) (models.ChartFrame, error) {
	return s.reconcile(id, func(st *ChartState) (models.ParamUpdate, bool) { return st.SetStartTime(startMs) })
}

// SetEndTime moves the window end of a session (epoch ms).
func (s *ChartService) SetEndTime(id string, endMs int64) (models.ChartFrame, error) {
	return s.reconcile(id, func(st *ChartState) (models.ParamUpdate, bool) { return st.SetEndTime(endMs) })
}

// SetResolution switches the resolution of a session by registry value.
func (s *ChartService) SetResolution(id string, value string) (models.ChartFrame, error) {
	r, ok := domrepo.FindResolution(value)
	if !ok {
		return models.ChartFrame{}, fmt.Errorf("%w: %s", ErrUnknownResolution, value)
	}
	return s.reconcile(id, func(st *ChartState) (models.ParamUpdate, bool) { return st.SetResolution(r) })
}

// Toggle flips a legend entry.
func (s *ChartService) Toggle(id, dataKey string) (models.ChartFrame, error) {
	return s.update(id, func(st *ChartState) bool { return st.Toggle(dataKey) })
}

// Hover highlights a legend entry.
func (s *ChartService) Hover(id, dataKey string) (models.ChartFrame, error) {
	return s.update(id, func(st *ChartState) bool { return st.Hover(dataKey) })
}

// Leave clears the highlight.
func (s *ChartService) Leave(id string) (models.ChartFrame, error) {
	return s.update(id, func(st *ChartState) bool { return st.Leave() })
}

// Subscribe returns a channel of frames pushed on every change of the session.
func (s *ChartService) Subscribe(id string) (<-chan models.ChartFrame, func(), error) {
	v, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsub := v.subscribe(s.subBuffer, s.now)
	return ch, unsub, nil
}

// Unmount removes a session.
func (s *ChartService) Unmount(id string) error {
	s.mu.Lock()
	v, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	v.shutdown()
	s.metrics.RecordSessions(n)
	return nil
}

// Chart fetches and renders one window without a session.
func (s *ChartService) Chart(ctx context.Context, p models.FetchParams) (models.ChartFrame, *models.CurrencyPayload, error) {
	res, ok := domrepo.FindResolution(p.Resolution)
	if !ok {
		return models.ChartFrame{}, nil, fmt.Errorf("%w: %s", ErrUnknownResolution, p.Resolution)
	}
	if (p.EndTime-p.StartTime)*1000 <= res.Millis() {
		return models.ChartFrame{}, nil, fmt.Errorf("%w: %s", ErrWindowTooShort, res.Label)
	}
	if s.maxCandles > 0 && p.EndTime-p.StartTime > s.maxCandles*res.Seconds {
		return models.ChartFrame{}, nil, fmt.Errorf("%w: more than %d at %s", ErrWindowTooLong, s.maxCandles, res.Label)
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	payload, err := s.source.Fetch(ctx, p)
	s.metrics.RecordFetch("chart", err, time.Since(start))
	if err != nil {
		return models.ChartFrame{}, nil, fmt.Errorf("fetch candles: %w", err)
	}
	if payload == nil {
		payload = &models.CurrencyPayload{}
	}
	st := ChartState{
		Window:     models.TimeWindow{StartTime: p.StartTime * 1000, EndTime: p.EndTime * 1000},
		Resolution: res,
		Visibility: NewSeriesVisibility(),
	}
	frame := RenderChart(st, payload, s.mode)
	s.metrics.RecordRender(frame.State)
	return frame, payload, nil
}

// DefaultParams returns the mount-time fetch variables for a pair.
func (s *ChartService) DefaultParams(base, quote string) models.FetchParams {
	return DefaultChartState(s.now()).FetchParams(base, quote)
}

// Run expires idle sessions until ctx is done.
func (s *ChartService) Run(ctx context.Context) {
	interval := s.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireIdle()
		}
	}
}

// Close cancels all fetches and drops every session.
func (s *ChartService) Close() {
	s.cancel()
	s.mu.Lock()
	for id, v := range s.sessions {
		v.shutdown()
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.metrics.RecordSessions(0)
}

func (s *ChartService) expireIdle() {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	var expired []*ChartView
	for id, v := range s.sessions {
		if v.idle(cutoff) {
			expired = append(expired, v)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, v := range expired {
		v.shutdown()
		s.l.Debug("chart session expired", applogger.String("session", v.id))
	}
	if len(expired) > 0 {
		s.metrics.RecordSessions(n)
	}
}

func (s *ChartService) get(id string) (*ChartView, error) {
	s.mu.RLock()
	v, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	v.touch(s.now())
	return v, nil
}

// reconcile applies a window/resolution change and, when accepted, refetches
// with the merged parameters.
func (s *ChartService) reconcile(id string, fn func(*ChartState) (models.ParamUpdate, bool)) (models.ChartFrame, error) {
	v, err := s.get(id)
	if err != nil {
		return models.ChartFrame{}, err
	}

	v.mu.Lock()
	upd, ok := fn(&v.state)
	if !ok {
		frame := v.render()
		v.mu.Unlock()
		return frame, nil
	}
	v.params = upd.Apply(v.params)
	ctx, gen := v.begin(s.ctx, s.fetchTimeout)
	params := v.params
	frame := v.render()
	v.emit(frame)
	v.mu.Unlock()

	s.dispatch(ctx, v, gen, params)
	s.publish(v.id, gen, params)
	return frame, nil
}

// update applies a change that needs no refetch.
func (s *ChartService) update(id string, fn func(*ChartState) bool) (models.ChartFrame, error) {
	v, err := s.get(id)
	if err != nil {
		return models.ChartFrame{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	changed := fn(&v.state)
	frame := v.render()
	if changed {
		v.emit(frame)
	}
	return frame, nil
}

func (s *ChartService) dispatch(ctx context.Context, v *ChartView, gen uint64, params models.FetchParams) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		payload, err := s.source.Fetch(ctx, params)
		s.metrics.RecordFetch("session", err, time.Since(start))

		if err != nil && errors.Is(err, context.Canceled) {
			s.metrics.RecordStaleDiscard()
			return
		}
		frame, ok := v.complete(gen, payload, err)
		if !ok {
			s.metrics.RecordStaleDiscard()
			s.l.Debug("stale fetch discarded",
				applogger.String("session", v.id),
				applogger.Uint64("generation", gen),
			)
			return
		}
		if err != nil {
			s.metrics.RecordError("fetch")
			s.l.Error("chart fetch failed",
				applogger.String("session", v.id),
				applogger.String("base", params.CurrencySymbol),
				applogger.String("quote", params.QuoteSymbol),
				applogger.Error(err),
			)
		}
		s.metrics.RecordRender(frame.State)
	}()
}

// publish emits the param update without blocking the caller.
func (s *ChartService) publish(id string, gen uint64, p models.FetchParams) {
	if s.publisher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer cancel()
		if err := s.publisher.PublishParamUpdate(ctx, id, gen, p); err != nil {
			s.metrics.RecordError("publish")
			s.l.Warn("chart event publish failed", applogger.String("session", id), applogger.Error(err))
		}
	}()
}
