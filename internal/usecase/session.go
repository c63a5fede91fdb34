package usecase

import (
	"context"
	"sync"
	"time"

	"DeepInfo/internal/domain/models"
)

// ChartView is one mounted chart: explicit state, the latest applied payload, and
// the generation of the newest fetch request. Completions for older generations are
// discarded.
type ChartView struct {
	id    string
	base  string
	quote string
	mode  JoinMode

	mu         sync.Mutex
	state      ChartState
	params     models.FetchParams
	payload    *models.CurrencyPayload
	fetchErr   string
	generation uint64
	cancel     context.CancelFunc
	lastSeen   time.Time

	subs    map[int]chan models.ChartFrame
	nextSub int
}

func newChartView(id, base, quote string, st ChartState, mode JoinMode, now time.Time) *ChartView {
	return &ChartView{
		id:       id,
		base:     base,
		quote:    quote,
		mode:     mode,
		state:    st,
		params:   st.FetchParams(base, quote),
		lastSeen: now,
		subs:     make(map[int]chan models.ChartFrame),
	}
}

// ID returns the session identifier.
func (v *ChartView) ID() string { return v.id }

// begin registers a new fetch generation for params, cancelling the previous one.
// Caller holds v.mu.
func (v *ChartView) begin(parent context.Context, timeout time.Duration) (context.Context, uint64) {
	if v.cancel != nil {
		v.cancel()
	}
	v.generation++
	ctx, cancel := context.WithTimeout(parent, timeout)
	v.cancel = cancel
	return ctx, v.generation
}

// complete applies a fetch result if gen is still current and pushes the new frame
// to subscribers before releasing the lock, so a later edit always reaches them last.
func (v *ChartView) complete(gen uint64, p *models.CurrencyPayload, err error) (models.ChartFrame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return models.ChartFrame{}, false
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if err != nil {
		v.fetchErr = err.Error()
	} else {
		v.fetchErr = ""
		v.payload = p
	}
	frame := v.render()
	v.emit(frame)
	return frame, true
}

// render builds a frame. Caller holds v.mu.
func (v *ChartView) render() models.ChartFrame {
	frame := RenderChart(v.state.Snapshot(), v.payload, v.mode)
	frame.SessionID = v.id
	frame.Generation = v.generation
	frame.Error = v.fetchErr
	return frame
}

// Render returns the current frame.
func (v *ChartView) Render() models.ChartFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.render()
}

func (v *ChartView) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

// idle reports whether the view has no subscribers and was last used before cutoff.
func (v *ChartView) idle(cutoff time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs) == 0 && v.lastSeen.Before(cutoff)
}

// subscribe registers a frame channel. The idle clock restarts when it is released.
func (v *ChartView) subscribe(buf int, now func() time.Time) (<-chan models.ChartFrame, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	ch := make(chan models.ChartFrame, buf)
	v.subs[id] = ch
	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
			v.lastSeen = now()
		}
	}
}

// emit sends frame to subscribers without blocking; slow subscribers miss frames.
// Caller holds v.mu.
func (v *ChartView) emit(frame models.ChartFrame) {
	for _, ch := range v.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// shutdown cancels the in-flight fetch and closes subscribers.
func (v *ChartView) shutdown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}
