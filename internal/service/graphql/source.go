package graphql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DeepInfo/internal/domain/models"
	domrepo "DeepInfo/internal/domain/repository"
	xhttp "DeepInfo/pkg/http"

	"github.com/shopspring/decimal"
)

// CandleQuery asks for the VWA aggregate and every market of the pair, oldest bucket first.
const CandleQuery = `
query CandlestickData(
  $currencySymbol: String!,
  $quoteSymbol: String,
  $startTime: Int,
  $endTime: Int,
  $resolution: TimeResolution!
) {
  currency(currencySymbol: $currencySymbol) {
    vwa: markets(filter: { quoteSymbol_eq: $quoteSymbol }, aggregation: VWA) {
      marketSymbol
      timeseries (resolution: $resolution, start: $startTime, end: $endTime, sort: OLD_FIRST) {
        open
        startUnix
        volume
      }
    }
    markets(filter: { quoteSymbol_eq: $quoteSymbol }) {
      marketSymbol
      timeseries (resolution: $resolution, start: $startTime, end: $endTime, sort: OLD_FIRST) {
        open
        startUnix
        volume
      }
    }
  }
}
`

type request struct {
	Query         string             `json:"query"`
	OperationName string             `json:"operationName"`
	Variables     models.FetchParams `json:"variables"`
}

type candleDTO struct {
	Open      decimal.NullDecimal `json:"open"`
	StartUnix int64               `json:"startUnix"`
	Volume    decimal.NullDecimal `json:"volume"`
}

type marketDTO struct {
	MarketSymbol string      `json:"marketSymbol"`
	Timeseries   []candleDTO `json:"timeseries"`
}

type response struct {
	Data struct {
		Currency *struct {
			VWA     []marketDTO `json:"vwa"`
			Markets []marketDTO `json:"markets"`
		} `json:"currency"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Source fetches chart payloads from a GraphQL endpoint.
type Source struct {
	client *xhttp.Client
	url    string
}

func NewSource(url string, timeout time.Duration, opts ...xhttp.ClientOption) *Source {
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &Source{client: xhttp.NewClient(opts...), url: url}
}

func (s *Source) Fetch(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
	var resp response
	err := s.client.PostJSON(ctx, s.url, request{
		Query:         CandleQuery,
		OperationName: "CandlestickData",
		Variables:     p,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("graphql candles: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("graphql candles: %s", strings.Join(msgs, "; "))
	}

	// unknown currency: empty payload, rendered as "no markets"
	cur := resp.Data.Currency
	if cur == nil {
		return &models.CurrencyPayload{}, nil
	}
	return &models.CurrencyPayload{
		Reference:  toSeries(cur.VWA),
		Comparison: toSeries(cur.Markets),
	}, nil
}

func toSeries(in []marketDTO) []models.MarketSeries {
	out := make([]models.MarketSeries, 0, len(in))
	for _, m := range in {
		ts := make([]models.Candle, 0, len(m.Timeseries))
		for _, c := range m.Timeseries {
			ts = append(ts, models.Candle{
				StartUnix: c.StartUnix,
				Open:      c.Open.Decimal.InexactFloat64(),
				Volume:    c.Volume.Decimal.InexactFloat64(),
			})
		}
		out = append(out, models.MarketSeries{MarketSymbol: m.MarketSymbol, Timeseries: ts})
	}
	return out
}

var _ domrepo.CandleSource = (*Source)(nil)
