package usecase

import (
	"math"
	"strings"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	"DeepInfo/pkg/util"
)

// DefaultLookbackMonths is how far back a freshly mounted chart starts.
const DefaultLookbackMonths = 3

// DefaultMaxCandles bounds a window; three months of minute candles still fit.
const DefaultMaxCandles = 150000

// SeriesVisibility maps a series name to its visible flag. Missing names are hidden.
type SeriesVisibility map[string]bool

// NewSeriesVisibility returns the mount-time visibility: volume and VWA shown.
func NewSeriesVisibility() SeriesVisibility {
	return SeriesVisibility{models.SeriesVolume: true, models.SeriesVWA: true}
}

// Visible reports whether name is shown.
func (v SeriesVisibility) Visible(name string) bool { return v[name] }

// Clone returns an independent copy.
func (v SeriesVisibility) Clone() SeriesVisibility {
	out := make(SeriesVisibility, len(v))
	for k, b := range v {
		out[k] = b
	}
	return out
}

// ChartState is everything a chart view owns. It only changes through the
// Set*/Toggle/Hover/Leave methods below.
type ChartState struct {
	Window     models.TimeWindow
	Resolution models.Resolution
	Visibility SeriesVisibility
	Highlight  string
	// MaxCandles rejects window edits spanning more candles. Zero means no cap.
	MaxCandles int64
}

// DefaultChartState is the state at mount: the last three months at daily resolution.
func DefaultChartState(now time.Time) ChartState {
	end := now.Unix()
	start := util.MonthsBefore(now, DefaultLookbackMonths).Unix()
	return ChartState{
		Window:     models.TimeWindow{StartTime: start * 1000, EndTime: end * 1000},
		Resolution: domrepo.DefaultResolution(),
		Visibility: NewSeriesVisibility(),
	}
}

// Snapshot returns a copy safe to hand to rendering.
func (s ChartState) Snapshot() ChartState {
	s.Visibility = s.Visibility.Clone()
	return s
}

// CandleCount is the number of candles the window spans at the current resolution.
func (s ChartState) CandleCount() float64 {
	if s.Resolution.Seconds <= 0 {
		return 0
	}
	return float64(s.Window.Span()) / float64(s.Resolution.Millis())
}

func (s ChartState) exceedsCap(spanMs int64, r models.Resolution) bool {
	return s.MaxCandles > 0 && spanMs > s.MaxCandles*r.Millis()
}

// SetStartTime moves the window start. It is a no-op when the window would not span
// more than one candle or would exceed MaxCandles. startMs is truncated to whole seconds.
func (s *ChartState) SetStartTime(startMs int64) (models.ParamUpdate, bool) {
	span := s.Window.EndTime - startMs
	if span <= s.Resolution.Millis() || s.exceedsCap(span, s.Resolution) {
		return models.ParamUpdate{}, false
	}
	start := floorDiv(startMs, 1000)
	end := floorDiv(s.Window.EndTime, 1000)
	s.Window.StartTime = start * 1000
	return models.ParamUpdate{StartTime: &start, EndTime: &end}, true
}

// SetEndTime moves the window end under the mirrored rule.
func (s *ChartState) SetEndTime(endMs int64) (models.ParamUpdate, bool) {
	end := floorDiv(endMs, 1000)
	span := end*1000 - s.Window.StartTime
	if span <= s.Resolution.Millis() || s.exceedsCap(span, s.Resolution) {
		return models.ParamUpdate{}, false
	}
	start := floorDiv(s.Window.StartTime, 1000)
	s.Window.EndTime = end * 1000
	return models.ParamUpdate{StartTime: &start, EndTime: &end}, true
}

// SetResolution switches the bucket size keeping the end fixed and the number of
// candles constant, so the wall-clock span scales with the resolution.
func (s *ChartState) SetResolution(r models.Resolution) (models.ParamUpdate, bool) {
	if r.Seconds <= 0 || r.Value == s.Resolution.Value {
		return models.ParamUpdate{}, false
	}
	count := s.CandleCount()
	if count <= 1 {
		return models.ParamUpdate{}, false
	}
	end := floorDiv(s.Window.EndTime, 1000)
	start := end - int64(math.Round(count*float64(r.Seconds)))
	if start < 0 || s.exceedsCap((end-start)*1000, r) {
		return models.ParamUpdate{}, false
	}
	s.Resolution = r
	s.Window.StartTime = start * 1000
	value := r.Value
	return models.ParamUpdate{StartTime: &start, Resolution: &value}, true
}

// Toggle flips the visibility of a legend entry and selects it.
func (s *ChartState) Toggle(dataKey string) bool {
	key := strings.TrimSpace(dataKey)
	if key == "" {
		return false
	}
	if s.Visibility == nil {
		s.Visibility = NewSeriesVisibility()
	}
	s.Visibility[key] = !s.Visibility[key]
	s.Highlight = key
	return true
}

// Hover highlights a legend entry.
func (s *ChartState) Hover(dataKey string) bool {
	key := strings.TrimSpace(dataKey)
	if key == s.Highlight {
		return false
	}
	s.Highlight = key
	return true
}

// Leave clears the highlight.
func (s *ChartState) Leave() bool {
	if s.Highlight == "" {
		return false
	}
	s.Highlight = ""
	return true
}

// FetchParams returns the data source variables for the current state.
func (s ChartState) FetchParams(base, quote string) models.FetchParams {
	return models.FetchParams{
		CurrencySymbol: base,
		QuoteSymbol:    quote,
		StartTime:      floorDiv(s.Window.StartTime, 1000),
		EndTime:        floorDiv(s.Window.EndTime, 1000),
		Resolution:     s.Resolution.Value,
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
