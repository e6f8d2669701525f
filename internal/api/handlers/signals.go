package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/minqi/freedom/internal/backtest"
	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/strategy"
	"github.com/minqi/freedom/pkg/logger"
)

// SignalHandler serves model predictions and on-demand backtests.
type SignalHandler struct {
	engine *backtest.Engine
	logger *logger.Logger
}

// NewSignalHandler creates a signal handler.
func NewSignalHandler(engine *backtest.Engine, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		engine: engine,
		logger: log,
	}
}

// Predict returns the model signal for one symbol and trade date. The
// scored strategy also returns its per-indicator score breakdown.
// GET /api/signals/{tsCode}?strategy=scored&date=20240110
func (h *SignalHandler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]
	q := r.URL.Query()

	date := q.Get("date")
	if date == "" {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	strategyName := q.Get("strategy")
	if strategyName == "" {
		strategyName = string(backtest.StrategyScored)
	}
	name, err := backtest.ParseStrategyName(strategyName)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown strategy")
		return
	}

	model, err := h.engine.BuildModel(ctx, name, tsCode)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No data for symbol")
			return
		}
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": tsCode,
		}).Error("Failed to build model")
		respondError(w, http.StatusInternalServerError, "Failed to build model")
		return
	}

	signal, err := model.Predict(date)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No data for trade date")
			return
		}
		h.logger.WithError(err).Error("Prediction failed")
		respondError(w, http.StatusInternalServerError, "Prediction failed")
		return
	}

	data := map[string]interface{}{
		"ts_code":    tsCode,
		"trade_date": date,
		"strategy":   name,
		"signal":     signal,
	}
	if scored, ok := model.(*strategy.ScoredModel); ok {
		if features, err := scored.FeaturesAt(date); err == nil {
			data["features"] = features
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Strategy    string  `json:"strategy"`
	TsCode      string  `json:"ts_code"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	InitialCash float64 `json:"initial_cash"`
}

// RunBacktest simulates one symbol over a date range and returns the
// trade-by-trade report.
// POST /api/backtest
func (h *SignalHandler) RunBacktest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TsCode == "" {
		respondError(w, http.StatusBadRequest, "ts_code is required")
		return
	}
	if req.InitialCash < 0 {
		respondError(w, http.StatusBadRequest, "initial_cash must not be negative")
		return
	}

	name, err := backtest.ParseStrategyName(req.Strategy)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Unknown strategy")
		return
	}

	report, err := h.engine.RunSymbol(ctx, name, req.TsCode, req.StartDate, req.EndDate, req.InitialCash)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No data for symbol in range")
			return
		}
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": req.TsCode,
		}).Error("Backtest failed")
		respondError(w, http.StatusInternalServerError, "Backtest failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}
