package repository

import (
	"strings"
	"testing"

	"DeepInfo/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeWeighted(t *testing.T) {
	markets := []models.MarketSeries{
		{MarketSymbol: "binance:BTC:USD", Timeseries: []models.Candle{
			{StartUnix: 200, Open: 10, Volume: 1},
			{StartUnix: 100, Open: 100, Volume: 3},
		}},
		{MarketSymbol: "kraken:BTC:USD", Timeseries: []models.Candle{
			{StartUnix: 100, Open: 200, Volume: 1},
			{StartUnix: 300, Open: 4, Volume: 0},
		}},
		{MarketSymbol: "coinbase:BTC:USD", Timeseries: []models.Candle{
			{StartUnix: 300, Open: 6, Volume: 0},
		}},
	}

	got := VolumeWeighted(markets)
	require.Len(t, got, 3)

	assert.Equal(t, int64(100), got[0].StartUnix)
	assert.InDelta(t, 125.0, got[0].Open, 1e-9) // (100*3 + 200*1) / 4
	assert.InDelta(t, 4.0, got[0].Volume, 1e-9)

	assert.Equal(t, int64(200), got[1].StartUnix)
	assert.InDelta(t, 10.0, got[1].Open, 1e-9)

	assert.Equal(t, int64(300), got[2].StartUnix)
	assert.InDelta(t, 5.0, got[2].Open, 1e-9) // no volume: plain mean
	assert.Zero(t, got[2].Volume)
}

func TestVolumeWeightedEmpty(t *testing.T) {
	assert.Empty(t, VolumeWeighted(nil))
}

func TestCandleSchema(t *testing.T) {
	stmts := CandleSchema("deepinfo")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE DATABASE IF NOT EXISTS deepinfo")
	assert.True(t, strings.Contains(stmts[1], "deepinfo.market_candles"))
}
