package usecase

import (
	"context"
	"fmt"

	"DeepInfo/internal/domain/models"
	"DeepInfo/pkg/util"
)

// PageUseCase assembles the pair page: navigation plus the mounted view content.
type PageUseCase struct {
	charts *ChartService
}

func NewPageUseCase(charts *ChartService) *PageUseCase {
	return &PageUseCase{charts: charts}
}

// Page renders the navigation for pathname and loads the content of the mounted view.
// Links keep the symbols as routed; data is fetched for the normalized pair.
func (uc *PageUseCase) Page(ctx context.Context, quote, base, pathname, search string) (*models.Page, error) {
	page := &models.Page{Navigation: Navigate(quote, base, pathname, search)}
	if page.Navigation.Mounted == "" {
		return page, nil
	}
	base, quote = util.NormalizeSymbol(base), util.NormalizeSymbol(quote)

	frame, payload, err := uc.charts.Chart(ctx, uc.charts.DefaultParams(base, quote))
	if err != nil {
		return nil, fmt.Errorf("load %s view: %w", page.Navigation.Mounted, err)
	}

	switch page.Navigation.Mounted {
	case models.ViewChart:
		page.Chart = &frame
	case models.ViewMarkets:
		page.Markets = make([]string, 0, len(payload.Comparison))
		for _, m := range payload.Comparison {
			page.Markets = append(page.Markets, m.MarketSymbol)
		}
	case models.ViewInfo:
		info := &models.PairInfo{Base: base, Quote: quote}
		if !payload.Empty() {
			if ts := payload.Reference[0].Timeseries; len(ts) > 0 {
				last := ts[len(ts)-1]
				info.LastPrice = &last.Open
				info.LastVolume = &last.Volume
				info.AsOf = last.StartUnix
			}
		}
		page.Info = info
	}
	return page, nil
}
