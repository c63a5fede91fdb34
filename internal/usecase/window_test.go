package usecase

import (
	"math"
	"testing"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
)

const t0 = int64(1700000000)

func stateAt(startSec, endSec int64, res string) ChartState {
	r, _ := domrepo.FindResolution(res)
	return ChartState{
		Window:     models.TimeWindow{StartTime: startSec * 1000, EndTime: endSec * 1000},
		Resolution: r,
		Visibility: NewSeriesVisibility(),
	}
}

func TestDefaultChartState(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	st := DefaultChartState(now)
	if st.Resolution.Value != "_1d" {
		t.Fatalf("resolution = %s, want _1d", st.Resolution.Value)
	}
	if st.Window.EndTime != now.Unix()*1000 {
		t.Fatalf("end = %d, want now", st.Window.EndTime)
	}
	if want := now.AddDate(0, -3, 0).Unix() * 1000; st.Window.StartTime != want {
		t.Fatalf("start = %d, want %d", st.Window.StartTime, want)
	}
	if !st.Visibility.Visible(models.SeriesVWA) || !st.Visibility.Visible(models.SeriesVolume) {
		t.Fatalf("VWA and volume should start visible")
	}
	if st.Visibility.Visible("binance") {
		t.Fatalf("exchanges should start hidden")
	}
}

func TestSetResolutionPreservesCandleCount(t *testing.T) {
	all := domrepo.Resolutions()
	for _, from := range all {
		for _, to := range all {
			if from.Value == to.Value {
				continue
			}
			for _, count := range []int64{2, 7, 50} {
				end := t0
				st := stateAt(end-count*from.Seconds, end, from.Value)
				upd, ok := st.SetResolution(to)
				if !ok {
					t.Fatalf("%s->%s count %d: rejected", from.Value, to.Value, count)
				}
				if upd.StartTime == nil || upd.Resolution == nil || upd.EndTime != nil {
					t.Fatalf("%s->%s: update should carry start and resolution only: %+v", from.Value, to.Value, upd)
				}
				got := math.Round(float64(end-*upd.StartTime) / float64(to.Seconds))
				if got != float64(count) {
					t.Fatalf("%s->%s: candle count %v, want %d", from.Value, to.Value, got, count)
				}
				if st.Window.EndTime != end*1000 {
					t.Fatalf("%s->%s: end moved", from.Value, to.Value)
				}
			}
		}
	}
}

func TestSetResolutionDailyToHourly(t *testing.T) {
	st := stateAt(t0, t0+90*86400, "_1d")
	hourly, _ := domrepo.FindResolution("_1h")

	upd, ok := st.SetResolution(hourly)
	if !ok {
		t.Fatalf("switch rejected")
	}
	end := t0 + 90*86400
	if want := end - 90*3600; *upd.StartTime != want {
		t.Fatalf("start = %d, want %d (90 hours)", *upd.StartTime, want)
	}
	if *upd.Resolution != "_1h" || st.Resolution.Value != "_1h" {
		t.Fatalf("resolution not switched")
	}
}

func TestSetResolutionNoOps(t *testing.T) {
	daily, _ := domrepo.FindResolution("_1d")
	cases := []struct {
		name string
		st   ChartState
		res  models.Resolution
	}{
		{"same resolution", stateAt(t0, t0+10*86400, "_1d"), daily},
		{"unknown resolution", stateAt(t0, t0+10*86400, "_1d"), models.Resolution{Value: "_3d"}},
		{"single candle window", stateAt(t0, t0+3600, "_1h"), daily},
	}
	for _, tc := range cases {
		before := tc.st.Snapshot()
		upd, ok := tc.st.SetResolution(tc.res)
		if ok || upd != (models.ParamUpdate{}) {
			t.Fatalf("%s: expected no-op, got %+v", tc.name, upd)
		}
		if tc.st.Window != before.Window || tc.st.Resolution != before.Resolution {
			t.Fatalf("%s: state changed", tc.name)
		}
	}
}

func TestSetStartTimeNoOpWithinOneCandle(t *testing.T) {
	st := stateAt(t0, t0+30*86400, "_1d")
	end := st.Window.EndTime
	for _, start := range []int64{end, end + 1, end - 86400*1000, end + 5*86400*1000} {
		before := st.Window
		upd, ok := st.SetStartTime(start)
		if ok || upd != (models.ParamUpdate{}) {
			t.Fatalf("start %d: expected no-op", start)
		}
		if st.Window != before {
			t.Fatalf("start %d: window changed", start)
		}
	}
}

func TestSetStartTimeAccepted(t *testing.T) {
	st := stateAt(t0, t0+30*86400, "_1d")
	newStart := st.Window.EndTime - 86400*1000 - 1500
	upd, ok := st.SetStartTime(newStart)
	if !ok {
		t.Fatalf("expected accepted")
	}
	wantStart := (newStart - 500) / 1000
	if *upd.StartTime != wantStart || *upd.EndTime != t0+30*86400 {
		t.Fatalf("update = %d..%d", *upd.StartTime, *upd.EndTime)
	}
	if upd.Resolution != nil {
		t.Fatalf("resolution should not be emitted")
	}
	if st.Window.StartTime != wantStart*1000 {
		t.Fatalf("start stored as %d, want whole seconds", st.Window.StartTime)
	}
}

func TestSetEndTimeMirrorsStart(t *testing.T) {
	st := stateAt(t0, t0+30*86400, "_1d")
	start := st.Window.StartTime

	for _, end := range []int64{start, start - 1000, start + 86400*1000} {
		before := st.Window
		if _, ok := st.SetEndTime(end); ok {
			t.Fatalf("end %d: expected no-op", end)
		}
		if st.Window != before {
			t.Fatalf("end %d: window changed", end)
		}
	}

	upd, ok := st.SetEndTime(start + 2*86400*1000)
	if !ok {
		t.Fatalf("expected accepted")
	}
	if *upd.StartTime != t0 || *upd.EndTime != t0+2*86400 {
		t.Fatalf("update = %d..%d", *upd.StartTime, *upd.EndTime)
	}
}

func TestToggleTwiceRestoresSeries(t *testing.T) {
	p := &models.CurrencyPayload{
		Reference:  []models.MarketSeries{series("vwa:BTC:USD", t0, 86400, 10, 11, 12)},
		Comparison: []models.MarketSeries{series("binance:BTC:USD", t0, 86400, 9, 10, 11)},
	}
	st := stateAt(t0, t0+3*86400, "_1d")
	before := RenderChart(st.Snapshot(), p, JoinPositional).Series

	for _, key := range []string{"binance", "VWA", "volume"} {
		st.Toggle(key)
		mid := RenderChart(st.Snapshot(), p, JoinPositional).Series
		st.Toggle(key)
		after := RenderChart(st.Snapshot(), p, JoinPositional).Series

		if len(after) != len(before) {
			t.Fatalf("%s: series count changed", key)
		}
		changed := false
		for i := range before {
			if after[i].DataKey != before[i].DataKey || after[i].Visible != before[i].Visible {
				t.Fatalf("%s: series %s not restored", key, before[i].Name)
			}
			if mid[i].Visible != before[i].Visible {
				changed = true
			}
		}
		if !changed {
			t.Fatalf("%s: first toggle changed nothing", key)
		}
	}
}

func TestToggleTrimsKeyAndHighlights(t *testing.T) {
	st := stateAt(t0, t0+3*86400, "_1d")
	if !st.Toggle("binance ") {
		t.Fatalf("toggle rejected")
	}
	if !st.Visibility.Visible("binance") || st.Highlight != "binance" {
		t.Fatalf("hidden key should map back to its series: %+v %q", st.Visibility, st.Highlight)
	}
	if st.Toggle("  ") {
		t.Fatalf("blank key should be ignored")
	}
	if !st.Hover("kraken") || st.Highlight != "kraken" {
		t.Fatalf("hover")
	}
	if !st.Leave() || st.Highlight != "" {
		t.Fatalf("leave")
	}
	if st.Leave() {
		t.Fatalf("second leave should be a no-op")
	}
}

func TestWindowEditsRespectMaxCandles(t *testing.T) {
	st := stateAt(t0, t0+5*3600, "_1h")
	st.MaxCandles = 10
	end := st.Window.EndTime

	if _, ok := st.SetStartTime(end - 11*3600*1000); ok {
		t.Fatalf("start spanning 11 candles accepted")
	}
	if _, ok := st.SetStartTime(end - 10*3600*1000); !ok {
		t.Fatalf("start spanning 10 candles rejected")
	}

	start := st.Window.StartTime
	if _, ok := st.SetEndTime(start + 11*3600*1000); ok {
		t.Fatalf("end spanning 11 candles accepted")
	}
	if st.Window.EndTime != end {
		t.Fatalf("rejected end moved the window")
	}

	st.MaxCandles = 0
	if _, ok := st.SetStartTime(end - 1000*3600*1000); !ok {
		t.Fatalf("uncapped state rejected a long window")
	}
}
