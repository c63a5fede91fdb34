package models

// View is one of the pair page tabs.
type View string

const (
	ViewChart   View = "chart"
	ViewInfo    View = "info"
	ViewMarkets View = "markets"
)

// Tab is a navigation link.
type Tab struct {
	Label  string `json:"label"`
	View   View   `json:"view"`
	Href   string `json:"href"`
	Active bool   `json:"active"`
}

// Navigation is the tab bar plus the view mounted for the current path.
// Mounted is empty when no view route matches.
type Navigation struct {
	Tabs    []Tab `json:"tabs"`
	Mounted View  `json:"mounted,omitempty"`
}

// PairInfo is the content of the info view.
type PairInfo struct {
	Base       string   `json:"base"`
	Quote      string   `json:"quote"`
	LastPrice  *float64 `json:"lastPrice,omitempty"`
	LastVolume *float64 `json:"lastVolume,omitempty"`
	AsOf       int64    `json:"asOf,omitempty"`
}

// Page is the navigation plus the mounted view content.
type Page struct {
	Navigation Navigation  `json:"navigation"`
	Chart      *ChartFrame `json:"chart,omitempty"`
	Markets    []string    `json:"markets,omitempty"`
	Info       *PairInfo   `json:"info,omitempty"`
}
