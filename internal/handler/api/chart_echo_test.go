package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DeepInfo/internal/domain/models"
	"DeepInfo/internal/service/ratelimit"
	"DeepInfo/internal/usecase"
	xlogger "DeepInfo/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{}

func (stubSource) Fetch(_ context.Context, p models.FetchParams) (*models.CurrencyPayload, error) {
	if p.CurrencySymbol == "NONE" {
		return &models.CurrencyPayload{}, nil
	}
	return &models.CurrencyPayload{
		Reference: []models.MarketSeries{{
			MarketSymbol: "vwa:" + p.CurrencySymbol + ":" + p.QuoteSymbol,
			Timeseries: []models.Candle{
				{StartUnix: p.StartTime, Open: 100, Volume: 10},
				{StartUnix: p.StartTime + 86400, Open: 101, Volume: 12},
			},
		}},
		Comparison: []models.MarketSeries{
			{MarketSymbol: "binance:" + p.CurrencySymbol + ":" + p.QuoteSymbol, Timeseries: []models.Candle{{StartUnix: p.StartTime, Open: 99}}},
			{MarketSymbol: "kraken:" + p.CurrencySymbol + ":" + p.QuoteSymbol, Timeseries: []models.Candle{{StartUnix: p.StartTime, Open: 98}}},
		},
	}, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, error, time.Duration) {}
func (nopMetrics) RecordStaleDiscard()                      {}
func (nopMetrics) RecordCache(bool)                         {}
func (nopMetrics) RecordRender(models.RenderState)          {}
func (nopMetrics) RecordSessions(int)                       {}
func (nopMetrics) RecordIngested(int)                       {}
func (nopMetrics) RecordError(string)                       {}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, rl *ratelimit.Limiter) (*echo.Echo, *usecase.ChartService) {
	t.Helper()
	charts := usecase.NewChartService(stubSource{}, nopMetrics{}, xlogger.Nop())
	t.Cleanup(charts.Close)
	h := NewChartEchoHandler(xlogger.Nop(), charts, usecase.NewPageUseCase(charts), rl)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, charts
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestChartStateless(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodGet, "/api/chart/usd/btc?start=1700000000&end=1701000000&resolution=_1d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var frame models.ChartFrame
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, models.StatePopulated, frame.State)
	assert.Len(t, frame.Rows, 2)
	assert.Equal(t, "_1d", frame.Resolution.Value)

	rec, _ = do(t, e, http.MethodGet, "/api/chart/usd/btc?resolution=_3y", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/chart/usd/btc?start=1700000000&end=1700000100", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/chart/usd/btc?start=1&end=1701000000&resolution=_1m", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "too many candles")

	rec, _ = do(t, e, http.MethodGet, "/api/chart/usd/btc?start=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/chart/usd/none", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, models.StateEmpty, frame.State)
}

func TestSessionLifecycle(t *testing.T) {
	e, charts := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodPost, "/api/sessions", `{"base":"btc","quote":"usd"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var frame models.ChartFrame
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	id := frame.SessionID
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		f, err := charts.Render(id)
		return err == nil && f.State == models.StatePopulated
	}, 2*time.Second, 10*time.Millisecond)

	rec, env = do(t, e, http.MethodPost, "/api/sessions/"+id+"/legend/toggle", `{"dataKey":"binance"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, "binance", frame.Highlight)

	rec, _ = do(t, e, http.MethodPost, "/api/sessions/"+id+"/legend/toggle", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, e, http.MethodPost, "/api/sessions/"+id+"/legend/leave", "")
	require.Equal(t, http.StatusOK, rec.Code)
	frame = models.ChartFrame{}
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Empty(t, frame.Highlight)

	rec, env = do(t, e, http.MethodPut, "/api/sessions/"+id+"/resolution", `{"value":"_7d"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, "_7d", frame.Resolution.Value)

	rec, _ = do(t, e, http.MethodPut, "/api/sessions/"+id+"/resolution", `{"value":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// start after end is ignored, not rejected
	before := frame.Window
	rec, env = do(t, e, http.MethodPut, "/api/sessions/"+id+"/start", `{"value":`+jsonInt(before.EndTime+1000)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &frame))
	assert.Equal(t, before, frame.Window)

	rec, _ = do(t, e, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMountValidation(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec, env := do(t, e, http.MethodPost, "/api/sessions", `{"base":"btc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(env.Data), "quote")
}

func TestPage(t *testing.T) {
	e, _ := newTestServer(t, nil)

	rec, env := do(t, e, http.MethodGet, "/pages/USD/BTC/markets?x=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.Page
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, models.ViewMarkets, page.Navigation.Mounted)
	require.Len(t, page.Navigation.Tabs, 3)
	assert.Equal(t, "/USD/BTC/chart?x=1", page.Navigation.Tabs[0].Href)
	assert.True(t, page.Navigation.Tabs[2].Active)
	assert.Equal(t, []string{"binance:BTC:USD", "kraken:BTC:USD"}, page.Markets)

	rec, env = do(t, e, http.MethodGet, "/pages/usd/btc/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = models.Page{}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.NotNil(t, page.Info)
	assert.Equal(t, "BTC", page.Info.Base)
	assert.Equal(t, "/usd/btc/chart", page.Navigation.Tabs[0].Href)

	rec, env = do(t, e, http.MethodGet, "/pages/USD/BTC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = models.Page{}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Empty(t, page.Navigation.Mounted)
	assert.Nil(t, page.Chart)
}

func TestResolutions(t *testing.T) {
	e, _ := newTestServer(t, nil)
	rec, env := do(t, e, http.MethodGet, "/api/resolutions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"default":"_1d"`)
}

func TestSessionRateLimit(t *testing.T) {
	e, _ := newTestServer(t, ratelimit.New(0, 1))
	rec, _ := do(t, e, http.MethodPost, "/api/sessions", `{"base":"btc","quote":"usd"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/sessions", `{"base":"eth","quote":"usd"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
