package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/minqi/freedom/internal/api/handlers"
	"github.com/minqi/freedom/pkg/logger"
)

// NewRouter wires all HTTP routes. Every endpoint lives under /api
// except the health check.
func NewRouter(
	stockHandler *handlers.StockHandler,
	marketHandler *handlers.MarketDataHandler,
	signalHandler *handlers.SignalHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Symbol catalog
	api.HandleFunc("/stocks", stockHandler.Search).Methods("GET")
	api.HandleFunc("/stocks/industries", stockHandler.Industries).Methods("GET")
	api.HandleFunc("/stocks/{tsCode}", stockHandler.Get).Methods("GET")

	// Stored market data
	api.HandleFunc("/daily/{tsCode}", marketHandler.GetDaily).Methods("GET")
	api.HandleFunc("/adj-factors/{tsCode}", marketHandler.GetAdjFactors).Methods("GET")
	api.HandleFunc("/limits/{tsCode}", marketHandler.GetLimits).Methods("GET")
	api.HandleFunc("/indicators/{tsCode}", marketHandler.GetIndicators).Methods("GET")

	// Signals and backtests
	api.HandleFunc("/signals/{tsCode}", signalHandler.Predict).Methods("GET")
	api.HandleFunc("/backtest", signalHandler.RunBacktest).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "freedom-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
