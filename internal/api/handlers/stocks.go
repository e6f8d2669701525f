package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/pkg/logger"
	"github.com/minqi/freedom/pkg/redis"
)

const stockCacheTTL = 5 * time.Minute

// StockHandler serves the symbol catalog endpoints. Search results and
// the industry list are cached in Redis when a cache is configured.
type StockHandler struct {
	catalog *catalog.Repository
	cache   *redis.Cache
	logger  *logger.Logger
}

// NewStockHandler creates a stock catalog handler.
func NewStockHandler(cat *catalog.Repository, cache *redis.Cache, log *logger.Logger) *StockHandler {
	return &StockHandler{
		catalog: cat,
		cache:   cache,
		logger:  log,
	}
}

// Search returns a filtered, paginated slice of the symbol catalog.
// GET /api/stocks?name=&ts_code=&industry=&page=&page_size=
func (h *StockHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := catalog.SearchFilter{
		Name:     q.Get("name"),
		TsCode:   q.Get("ts_code"),
		Industry: q.Get("industry"),
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	cacheKey := fmt.Sprintf("search:%s:%s:%s:%d:%d",
		filter.Name, filter.TsCode, filter.Industry, page, pageSize)

	var cached catalog.SearchResult
	if ok, err := h.cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		h.logger.WithError(err).Warn("Stock search cache lookup failed")
	} else if ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    cached,
		})
		return
	}

	result, err := h.catalog.Search(ctx, filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search stocks")
		respondError(w, http.StatusInternalServerError, "Failed to search stocks")
		return
	}

	if err := h.cache.SetJSON(ctx, cacheKey, result, stockCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Stock search cache store failed")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// Industries returns the distinct industry names in the catalog.
// GET /api/stocks/industries
func (h *StockHandler) Industries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached []string
	if ok, err := h.cache.GetJSON(ctx, "industries", &cached); err != nil {
		h.logger.WithError(err).Warn("Industry cache lookup failed")
	} else if ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    cached,
		})
		return
	}

	industries, err := h.catalog.Industries(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list industries")
		respondError(w, http.StatusInternalServerError, "Failed to list industries")
		return
	}

	if err := h.cache.SetJSON(ctx, "industries", industries, stockCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Industry cache store failed")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    industries,
	})
}

// Get returns one symbol's metadata. Bare exchange symbols are
// resolved to their full ts_code first.
// GET /api/stocks/{tsCode}
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["tsCode"]

	tsCode, err := h.catalog.ResolveTsCode(ctx, code)
	if err == nil {
		var info *contracts.SymbolInfo
		info, err = h.catalog.GetByCode(ctx, tsCode)
		if err == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data":    info,
			})
			return
		}
	}

	if errors.Is(err, contracts.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Symbol not found")
		return
	}

	h.logger.WithError(err).WithFields(map[string]interface{}{
		"ts_code": code,
	}).Error("Failed to get stock")
	respondError(w, http.StatusInternalServerError, "Failed to get stock")
}
