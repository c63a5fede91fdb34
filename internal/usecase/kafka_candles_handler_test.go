package usecase

import (
	"context"
	"errors"
	"testing"

	"DeepInfo/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	stored []models.MarketCandle
	err    error
}

func (s *memStore) Fetch(context.Context, models.FetchParams) (*models.CurrencyPayload, error) {
	return nil, nil
}

func (s *memStore) StoreBatch(_ context.Context, c []models.MarketCandle) error {
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, c...)
	return nil
}

func (s *memStore) Health(context.Context) error { return nil }

func TestKafkaCandlesHandlerSingleAndBatch(t *testing.T) {
	store := &memStore{}
	m := &fakeMetrics{}
	h := NewKafkaCandlesHandler("candles", store, m)
	assert.Equal(t, "candles", h.Topic())

	require.NoError(t, h.Handle(context.Background(),
		[]byte(`{"market_symbol":"binance:btc:usdt","t":1700000000000,"o":37000.5,"v":12}`)))
	require.NoError(t, h.Handle(context.Background(),
		[]byte(` [{"market_symbol":"kraken:BTC:USD","base":"btc","quote":"usd","t":1700003600,"o":1,"v":2},
		          {"market_symbol":"kraken:BTC:USD","base":"btc","quote":"usd","t":1700007200,"o":3,"v":4}]`)))

	require.Len(t, store.stored, 3)
	first := store.stored[0]
	assert.Equal(t, int64(1700000000), first.StartUnix, "ms timestamps are normalised")
	assert.Equal(t, "BTC", first.Base)
	assert.Equal(t, "USDT", first.Quote)
	assert.Equal(t, 37000.5, first.Open)
	assert.Equal(t, int64(1700003600), store.stored[1].StartUnix)
	assert.Equal(t, "USD", store.stored[2].Quote)
	assert.Equal(t, int64(3), m.ingested.Load())
}

func TestKafkaCandlesHandlerRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind string
	}{
		{"bad json", `{"market_symbol":`, "consumer_unmarshal"},
		{"missing time", `{"market_symbol":"binance:BTC:USD","o":1}`, "consumer_invalid"},
		{"unknown pair", `{"market_symbol":"binance","t":1700000000}`, "consumer_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &memStore{}
			m := &fakeMetrics{}
			err := NewKafkaCandlesHandler("candles", store, m).Handle(context.Background(), []byte(tc.body))
			require.Error(t, err)
			assert.Empty(t, store.stored)
			assert.Equal(t, []string{tc.kind}, m.errors)
		})
	}
}

func TestKafkaCandlesHandlerStoreError(t *testing.T) {
	store := &memStore{err: errors.New("clickhouse down")}
	m := &fakeMetrics{}
	err := NewKafkaCandlesHandler("candles", store, m).Handle(context.Background(),
		[]byte(`{"market_symbol":"binance:BTC:USD","t":1700000000,"o":1,"v":1}`))
	assert.ErrorContains(t, err, "clickhouse down")
	assert.Equal(t, []string{"consumer_store"}, m.errors)
	assert.Zero(t, m.ingested.Load())
}
