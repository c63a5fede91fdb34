package models

import "encoding/json"

// Series names that always exist on the chart.
const (
	SeriesVolume = "volume"
	SeriesVWA    = "VWA"
)

// RenderState is the observable state of a chart.
type RenderState string

const (
	StateLoading   RenderState = "loading"
	StateEmpty     RenderState = "empty"
	StatePopulated RenderState = "populated"
)

// NoMarketsMessage is shown instead of the chart when the reference series is empty.
const NoMarketsMessage = "No markets found for selected currency pair. Please select a different quote currency"

// ChartRow is one x-axis point of the composed chart.
// Markets maps exchange name to its open price; nil means the exchange has no bucket here.
type ChartRow struct {
	Name      string
	Timestamp int64
	VWA       float64
	Volume    float64
	Markets   map[string]*float64
}

// IsRowColumn reports whether key is one of the fixed ChartRow columns.
func IsRowColumn(key string) bool {
	switch key {
	case "name", "timestamp", SeriesVWA, SeriesVolume:
		return true
	}
	return false
}

// MarshalJSON flattens exchange values next to the fixed columns. Market keys are
// expected to come from MarketSeries.SeriesKey; a key equal to a fixed column is
// overwritten by that column.
func (r ChartRow) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(r.Markets)+4)
	for k, v := range r.Markets {
		m[k] = v
	}
	m["name"] = r.Name
	m["timestamp"] = r.Timestamp
	m[SeriesVWA] = r.VWA
	m[SeriesVolume] = r.Volume
	return json.Marshal(m)
}

// SeriesKind is how a series is drawn.
type SeriesKind string

const (
	KindLine SeriesKind = "line"
	KindBar  SeriesKind = "bar"
)

// SeriesSpec describes one drawn series. Hidden series keep their entry but point
// DataKey at a key no row carries.
type SeriesSpec struct {
	Name        string     `json:"name"`
	Kind        SeriesKind `json:"kind"`
	DataKey     string     `json:"dataKey"`
	AxisID      string     `json:"yAxisId"`
	Color       string     `json:"color"`
	StrokeWidth int        `json:"strokeWidth,omitempty"`
	BarSize     int        `json:"barSize,omitempty"`
	Visible     bool       `json:"visible"`
}

// AxisSpec describes a y axis and its domain.
type AxisSpec struct {
	ID          string     `json:"id"`
	DataKey     string     `json:"dataKey"`
	Orientation string     `json:"orientation"`
	Domain      [2]float64 `json:"domain"`
	Hidden      bool       `json:"hidden"`
}

// ChartFrame is a full render of a chart view.
type ChartFrame struct {
	SessionID  string       `json:"sessionId,omitempty"`
	Generation uint64       `json:"generation"`
	State      RenderState  `json:"state"`
	Message    string       `json:"message,omitempty"`
	Window     TimeWindow   `json:"window"`
	Resolution Resolution   `json:"resolution"`
	Highlight  string       `json:"highlight,omitempty"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Rows       []ChartRow   `json:"rows,omitempty"`
	Series     []SeriesSpec `json:"series,omitempty"`
	Axes       []AxisSpec   `json:"axes,omitempty"`
	Error      string       `json:"error,omitempty"`
}
