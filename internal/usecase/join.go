package usecase

import (
	"fmt"
	"time"

	"DeepInfo/internal/domain/models"
)

// JoinMode selects how comparison series are lined up with the reference series.
type JoinMode string

const (
	// JoinPositional pairs buckets by index. Gaps upstream shift exchanges out of line.
	JoinPositional JoinMode = "positional"
	// JoinTimestamp pairs buckets by startUnix.
	JoinTimestamp JoinMode = "timestamp"
)

// ParseJoinMode returns the mode for s, defaulting to positional.
func ParseJoinMode(s string) JoinMode {
	if JoinMode(s) == JoinTimestamp {
		return JoinTimestamp
	}
	return JoinPositional
}

// JoinSeries builds one row per reference bucket. The payload must not be empty.
func JoinSeries(p *models.CurrencyPayload, mode JoinMode) []models.ChartRow {
	if p.Empty() {
		return nil
	}
	ref := p.Reference[0].Timeseries

	var lookup func(market models.MarketSeries, idx int, ts int64) *float64
	switch mode {
	case JoinTimestamp:
		index := make(map[string]map[int64]float64, len(p.Comparison))
		for _, m := range p.Comparison {
			byTS := make(map[int64]float64, len(m.Timeseries))
			for _, c := range m.Timeseries {
				byTS[c.StartUnix] = c.Open
			}
			index[m.MarketSymbol] = byTS
		}
		lookup = func(m models.MarketSeries, _ int, ts int64) *float64 {
			if v, ok := index[m.MarketSymbol][ts]; ok {
				return &v
			}
			return nil
		}
	default:
		lookup = func(m models.MarketSeries, idx int, _ int64) *float64 {
			if idx < len(m.Timeseries) {
				v := m.Timeseries[idx].Open
				return &v
			}
			return nil
		}
	}

	rows := make([]models.ChartRow, 0, len(ref))
	for i, c := range ref {
		markets := make(map[string]*float64, len(p.Comparison))
		for _, m := range p.Comparison {
			markets[m.SeriesKey()] = lookup(m, i, c.StartUnix)
		}
		rows = append(rows, models.ChartRow{
			Name:      CandleLabel(c.StartUnix),
			Timestamp: c.StartUnix,
			VWA:       c.Open,
			Volume:    c.Volume,
			Markets:   markets,
		})
	}
	return rows
}

// CandleLabel formats a bucket start as "H:m MMM DD" in UTC, hour and minute unpadded.
func CandleLabel(startUnix int64) string {
	t := time.Unix(startUnix, 0).UTC()
	return fmt.Sprintf("%d:%d %s", t.Hour(), t.Minute(), t.Format("Jan 02"))
}

// ExchangeNames returns the distinct row keys of the comparison series in order.
func ExchangeNames(p *models.CurrencyPayload) []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(p.Comparison))
	out := make([]string, 0, len(p.Comparison))
	for _, m := range p.Comparison {
		name := m.SeriesKey()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
