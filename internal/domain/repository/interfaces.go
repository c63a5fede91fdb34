package repository

import (
	"context"
	"time"

	"DeepInfo/internal/domain/models"
)

// CandleSource fetches the chart payload for a currency pair.
type CandleSource interface {
	Fetch(ctx context.Context, p models.FetchParams) (*models.CurrencyPayload, error)
}

// CandleStore persists raw market candles and serves aggregated series.
type CandleStore interface {
	CandleSource
	StoreBatch(ctx context.Context, candles []models.MarketCandle) error
	Health(ctx context.Context) error
}

// EventPublisher emits chart interaction events.
type EventPublisher interface {
	PublishParamUpdate(ctx context.Context, sessionID string, generation uint64, p models.FetchParams) error
	Close() error
}

// Metrics records service level measurements.
type Metrics interface {
	RecordFetch(source string, err error, d time.Duration)
	RecordStaleDiscard()
	RecordCache(hit bool)
	RecordRender(state models.RenderState)
	RecordSessions(n int)
	RecordIngested(n int)
	RecordError(kind string)
}
