package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/logger"
)

// MarketDataHandler serves reads from the segment store. Unknown
// symbols yield empty result sets, not errors.
type MarketDataHandler struct {
	store  *segstore.Store
	logger *logger.Logger
}

// NewMarketDataHandler creates a market data handler.
func NewMarketDataHandler(store *segstore.Store, log *logger.Logger) *MarketDataHandler {
	return &MarketDataHandler{
		store:  store,
		logger: log,
	}
}

// GetDaily returns stored daily bars for a symbol, oldest first.
// GET /api/daily/{tsCode}?start=&end=
func (h *MarketDataHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]
	q := r.URL.Query()

	bars, err := h.store.ReadBars(ctx, tsCode, q.Get("start"), q.Get("end"))
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": tsCode,
		}).Error("Failed to read daily bars")
		respondError(w, http.StatusInternalServerError, "Failed to read daily bars")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(bars),
		"data":    bars,
	})
}

// GetAdjFactors returns stored adjustment factors for a symbol.
// GET /api/adj-factors/{tsCode}
func (h *MarketDataHandler) GetAdjFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]

	rows, err := h.store.ReadAdjFactors(ctx, tsCode)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": tsCode,
		}).Error("Failed to read adj factors")
		respondError(w, http.StatusInternalServerError, "Failed to read adj factors")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(rows),
		"data":    rows,
	})
}

// GetLimits returns stored daily price limits for a symbol.
// GET /api/limits/{tsCode}
func (h *MarketDataHandler) GetLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]

	rows, err := h.store.ReadLimits(ctx, tsCode)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": tsCode,
		}).Error("Failed to read price limits")
		respondError(w, http.StatusInternalServerError, "Failed to read price limits")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(rows),
		"data":    rows,
	})
}

// GetIndicators returns stored indicator rows for a symbol.
// GET /api/indicators/{tsCode}
func (h *MarketDataHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tsCode := mux.Vars(r)["tsCode"]

	rows, err := h.store.ReadIndicators(ctx, tsCode)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"ts_code": tsCode,
		}).Error("Failed to read indicators")
		respondError(w, http.StatusInternalServerError, "Failed to read indicators")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(rows),
		"data":    rows,
	})
}
