package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/internal/api/handlers"
	"github.com/minqi/freedom/internal/backtest"
	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/indicator"
	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/config"
	"github.com/minqi/freedom/pkg/logger"
	"github.com/minqi/freedom/pkg/redis"
)

func testRouter(t *testing.T) (http.Handler, *segstore.Store) {
	t.Helper()
	log := logger.NewNop()
	store := segstore.New(t.TempDir(), log)

	cache := redis.NewCache(mustDisabledRedis(t), "test")
	stockHandler := handlers.NewStockHandler(nil, cache, log)
	marketHandler := handlers.NewMarketDataHandler(store, log)
	signalHandler := handlers.NewSignalHandler(backtest.NewEngine(store, log), log)

	return NewRouter(stockHandler, marketHandler, signalHandler, log), store
}

func mustDisabledRedis(t *testing.T) *redis.Client {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return client
}

func seedSymbol(t *testing.T, store *segstore.Store, tsCode string, n int) {
	t.Helper()
	ctx := context.Background()

	bars := make([]contracts.Bar, 0, n)
	for i := 0; i < n; i++ {
		close := 10.0 + float64(i)*0.1
		bars = append(bars, contracts.Bar{
			TsCode:    tsCode,
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      close - 0.05,
			High:      close + 0.1,
			Low:       close - 0.1,
			Close:     close,
			Vol:       1000,
			Amount:    close * 1000,
		})
	}
	_, err := store.AppendBars(ctx, tsCode, bars)
	require.NoError(t, err)

	_, err = store.ReplaceIndicators(ctx, tsCode, indicator.Compute(bars))
	require.NoError(t, err)
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, _ := testRouter(t)

	rec := doRequest(t, router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetDaily(t *testing.T) {
	router, store := testRouter(t)
	seedSymbol(t, store, "000001.SZ", 5)

	rec := doRequest(t, router, "GET", "/api/daily/000001.SZ?start=20240102&end=20240104", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool            `json:"success"`
		Count   int             `json:"count"`
		Data    []contracts.Bar `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "20240102", body.Data[0].TradeDate)
}

func TestGetDailyUnknownSymbolIsEmpty(t *testing.T) {
	router, _ := testRouter(t)

	rec := doRequest(t, router, "GET", "/api/daily/999999.SZ", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestGetIndicators(t *testing.T) {
	router, store := testRouter(t)
	seedSymbol(t, store, "000001.SZ", 5)

	rec := doRequest(t, router, "GET", "/api/indicators/000001.SZ", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                      `json:"count"`
		Data  []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 5, body.Count)
	// The first Bollinger band values have no defined std yet and
	// must arrive as null rather than break encoding.
	assert.Nil(t, body.Data[0]["boll_upper"])
	assert.NotNil(t, body.Data[1]["boll_upper"])
}

func TestPredictSignal(t *testing.T) {
	router, store := testRouter(t)
	seedSymbol(t, store, "000001.SZ", 10)

	rec := doRequest(t, router, "GET", "/api/signals/000001.SZ?strategy=scored&date=20240110", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Signal   string                 `json:"signal"`
			Strategy string                 `json:"strategy"`
			Features map[string]interface{} `json:"features"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "scored", body.Data.Strategy)
	assert.NotEmpty(t, body.Data.Signal)
	assert.NotNil(t, body.Data.Features)
}

func TestPredictSignalValidation(t *testing.T) {
	router, store := testRouter(t)
	seedSymbol(t, store, "000001.SZ", 10)

	rec := doRequest(t, router, "GET", "/api/signals/000001.SZ?strategy=scored", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "GET", "/api/signals/000001.SZ?strategy=bogus&date=20240110", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "GET", "/api/signals/999999.SZ?strategy=scored&date=20240110", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, "GET", "/api/signals/000001.SZ?strategy=scored&date=20990101", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunBacktest(t *testing.T) {
	router, store := testRouter(t)
	seedSymbol(t, store, "000001.SZ", 10)

	rec := doRequest(t, router, "POST", "/api/backtest", handlers.BacktestRequest{
		Strategy:    "scored",
		TsCode:      "000001.SZ",
		StartDate:   "20240101",
		EndDate:     "20240110",
		InitialCash: 100000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data backtest.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "000001.SZ", body.Data.TsCode)
	assert.Equal(t, 100000.0, body.Data.InitialCash)
	assert.InDelta(t, body.Data.Cash+body.Data.PositionValue, body.Data.Equity, 1e-9)
}

func TestRunBacktestValidation(t *testing.T) {
	router, _ := testRouter(t)

	rec := doRequest(t, router, "POST", "/api/backtest", handlers.BacktestRequest{
		Strategy: "scored", StartDate: "20240101", EndDate: "20240110",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "POST", "/api/backtest", handlers.BacktestRequest{
		Strategy: "bogus", TsCode: "000001.SZ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, "POST", "/api/backtest", handlers.BacktestRequest{
		Strategy: "scored", TsCode: "999999.SZ",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
