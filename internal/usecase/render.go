package usecase

import (
	"math"

	"DeepInfo/internal/domain/models"
)

const (
	chartWidth  = 800
	chartHeight = 400

	vwaColor    = "#585858"
	volumeColor = "#e1e2e6"
	volumeBar   = 20

	axisVWA    = models.SeriesVWA
	axisVolume = models.SeriesVolume
)

var palette = []string{"#90BADB", "#C595D0", "#FEA334", "#5ECF96", "#FF62EA", "#69FFE9", "#69FFE9"}

// DataKey is the row key a series plots. Hidden series get a key no row carries,
// which stops the chart drawing them without changing axis domains.
func DataKey(name string, visible bool) string {
	if visible {
		return name
	}
	return name + " "
}

// RenderChart turns a state snapshot and the latest payload into a frame.
func RenderChart(st ChartState, p *models.CurrencyPayload, mode JoinMode) models.ChartFrame {
	frame := models.ChartFrame{
		Window:     st.Window,
		Resolution: st.Resolution,
		Highlight:  st.Highlight,
		Width:      chartWidth,
		Height:     chartHeight,
	}
	switch {
	case p == nil:
		frame.State = models.StateLoading
		return frame
	case p.Empty():
		frame.State = models.StateEmpty
		frame.Message = models.NoMarketsMessage
		return frame
	}

	frame.State = models.StatePopulated
	frame.Rows = JoinSeries(p, mode)
	frame.Series = buildSeries(st, ExchangeNames(p))
	frame.Axes = buildAxes(frame.Rows)
	return frame
}

func buildSeries(st ChartState, exchanges []string) []models.SeriesSpec {
	width := func(name string) int {
		if st.Highlight == name {
			return 3
		}
		return 1
	}
	series := make([]models.SeriesSpec, 0, len(exchanges)+2)
	series = append(series,
		models.SeriesSpec{
			Name:    models.SeriesVolume,
			Kind:    models.KindBar,
			DataKey: DataKey(models.SeriesVolume, st.Visibility.Visible(models.SeriesVolume)),
			AxisID:  axisVolume,
			Color:   volumeColor,
			BarSize: volumeBar,
			Visible: st.Visibility.Visible(models.SeriesVolume),
		},
		models.SeriesSpec{
			Name:        models.SeriesVWA,
			Kind:        models.KindLine,
			DataKey:     DataKey(models.SeriesVWA, st.Visibility.Visible(models.SeriesVWA)),
			AxisID:      axisVWA,
			Color:       vwaColor,
			StrokeWidth: width(models.SeriesVWA),
			Visible:     st.Visibility.Visible(models.SeriesVWA),
		},
	)
	for i, name := range exchanges {
		visible := st.Visibility.Visible(name)
		series = append(series, models.SeriesSpec{
			Name:        name,
			Kind:        models.KindLine,
			DataKey:     DataKey(name, visible),
			AxisID:      axisVWA,
			Color:       palette[i%len(palette)],
			StrokeWidth: width(name),
			Visible:     visible,
		})
	}
	return series
}

// buildAxes computes domains from every row regardless of visibility.
func buildAxes(rows []models.ChartRow) []models.AxisSpec {
	priceMin, priceMax := math.Inf(1), math.Inf(-1)
	volMin, volMax := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		priceMin = math.Min(priceMin, r.VWA)
		priceMax = math.Max(priceMax, r.VWA)
		volMin = math.Min(volMin, r.Volume)
		volMax = math.Max(volMax, r.Volume)
	}
	if len(rows) == 0 {
		priceMin, priceMax, volMin, volMax = 0, 0, 0, 0
	}
	return []models.AxisSpec{
		{
			ID:          axisVWA,
			DataKey:     models.SeriesVWA,
			Orientation: "left",
			Domain:      [2]float64{priceMin * 0.975, priceMax * 1.025},
		},
		{
			ID:          axisVolume,
			DataKey:     models.SeriesVolume,
			Orientation: "right",
			Domain:      [2]float64{volMin, volMax * 3},
			Hidden:      true,
		},
	}
}
