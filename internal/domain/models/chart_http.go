package models

// Requests for chart HTTP endpoints.

type ChartRequest struct {
	Quote      string `param:"quote" validate:"required"`
	Base       string `param:"base" validate:"required"`
	Start      string `query:"start"`
	End        string `query:"end"`
	Resolution string `query:"resolution" default:"_1d"`
}

type MountRequest struct {
	Base  string `json:"base" validate:"required"`
	Quote string `json:"quote" validate:"required"`
}

type TimeRequest struct {
	ID    string `param:"id" validate:"required"`
	Value int64  `json:"value" validate:"gt=0"`
}

type ResolutionRequest struct {
	ID    string `param:"id" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type LegendRequest struct {
	ID      string `param:"id" validate:"required"`
	DataKey string `json:"dataKey"`
}

type PageRequest struct {
	Quote string `param:"quote" validate:"required"`
	Base  string `param:"base" validate:"required"`
	View  string `param:"view"`
}

// StreamCommand is a client message on the session websocket.
type StreamCommand struct {
	Op    string `json:"op"`
	Value string `json:"value,omitempty"`
	Time  int64  `json:"time,omitempty"`
}
