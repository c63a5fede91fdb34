package models

import "strings"

// Candle is one time bucket of a market series.
type Candle struct {
	StartUnix int64   `json:"startUnix"`
	Open      float64 `json:"open"`
	Volume    float64 `json:"volume"`
}

// MarketSeries is the bucketed time series of one market (or of the VWA aggregate).
type MarketSeries struct {
	MarketSymbol string   `json:"marketSymbol"`
	Timeseries   []Candle `json:"timeseries"`
}

// Exchange returns the exchange part of a market symbol ("binance:BTC:USDT" -> "binance").
func (m MarketSeries) Exchange() string {
	if i := strings.IndexByte(m.MarketSymbol, ':'); i >= 0 {
		return m.MarketSymbol[:i]
	}
	return m.MarketSymbol
}

// SeriesKey is the row key of the series: its exchange name, suffixed with "_" when
// that name collides with a fixed ChartRow column.
func (m MarketSeries) SeriesKey() string {
	name := m.Exchange()
	if IsRowColumn(name) {
		return name + "_"
	}
	return name
}

// CurrencyPayload is what the data source returns for one currency pair.
// Reference holds the volume weighted average series, Comparison the per-exchange series.
type CurrencyPayload struct {
	Reference  []MarketSeries `json:"vwa"`
	Comparison []MarketSeries `json:"markets"`
}

// Empty reports whether the payload has no reference series.
func (p *CurrencyPayload) Empty() bool {
	return p == nil || len(p.Reference) == 0
}

// MarketCandle is a raw candle of one market as ingested from the candle stream.
type MarketCandle struct {
	MarketSymbol string
	Base         string
	Quote        string
	StartUnix    int64
	Open         float64
	Volume       float64
}
