package models

// Resolution is one supported candle bucket size.
type Resolution struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Seconds int64  `json:"seconds"`
}

// Millis returns the bucket duration in milliseconds.
func (r Resolution) Millis() int64 { return r.Seconds * 1000 }

// TimeWindow is the displayed chart range in epoch milliseconds.
type TimeWindow struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
}

// Span returns EndTime - StartTime in milliseconds.
func (w TimeWindow) Span() int64 { return w.EndTime - w.StartTime }

// FetchParams are the variables sent to the data source.
// StartTime and EndTime are unix seconds.
type FetchParams struct {
	CurrencySymbol string `json:"currencySymbol"`
	QuoteSymbol    string `json:"quoteSymbol"`
	StartTime      int64  `json:"startTime"`
	EndTime        int64  `json:"endTime"`
	Resolution     string `json:"resolution"`
}

// ParamUpdate carries only the fetch variables that changed. Nil fields keep their value.
type ParamUpdate struct {
	StartTime  *int64  `json:"startTime,omitempty"`
	EndTime    *int64  `json:"endTime,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
}

// Apply merges the update into p and returns the result.
func (u ParamUpdate) Apply(p FetchParams) FetchParams {
	if u.StartTime != nil {
		p.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		p.EndTime = *u.EndTime
	}
	if u.Resolution != nil {
		p.Resolution = *u.Resolution
	}
	return p
}
