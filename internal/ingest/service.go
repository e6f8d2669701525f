// Package ingest orchestrates data ingestion: syncing the symbol
// catalog, pulling daily history into the segment store, and computing
// indicator rows from stored bars.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/minqi/freedom/internal/catalog"
	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/indicator"
	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/logger"
)

// Provider is the market-data upstream. The concrete implementation
// lives in internal/provider/tushare.
type Provider interface {
	FetchStockBasic(ctx context.Context) ([]contracts.SymbolInfo, error)
	FetchDaily(ctx context.Context, tsCode, start, end string) ([]contracts.Bar, error)
	FetchAdjFactors(ctx context.Context, tsCode, start, end string) ([]contracts.AdjFactor, error)
	FetchLimits(ctx context.Context, tsCode, start, end string) ([]contracts.PriceLimit, error)
}

// Config holds ingestion tuning knobs.
type Config struct {
	Workers int // concurrent symbols per batch operation
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// Service wires the provider, the symbol catalog and the segment store.
type Service struct {
	provider Provider
	catalog  *catalog.Repository
	store    *segstore.Store
	logger   *logger.Logger
}

// NewService creates an ingestion Service. The catalog may be nil when
// running store-only operations such as ComputeIndicators.
func NewService(provider Provider, cat *catalog.Repository, store *segstore.Store, log *logger.Logger) *Service {
	return &Service{
		provider: provider,
		catalog:  cat,
		store:    store,
		logger:   log.WithField("module", "ingest"),
	}
}

// SyncBasic replaces the symbol catalog with the provider's current
// listing and returns the number of symbols stored.
func (s *Service) SyncBasic(ctx context.Context) (int, error) {
	rows, err := s.provider.FetchStockBasic(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch stock basic: %w", err)
	}

	if err := s.catalog.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema: %w", err)
	}

	n, err := s.catalog.Replace(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}

	s.logger.WithField("count", n).Info("Symbol catalog synced")
	return n, nil
}

// PullResult reports the outcome of pulling one symbol's history.
type PullResult struct {
	TsCode     string
	Bars       int
	AdjFactors int
	Limits     int
	Err        error
}

// PullDaily pulls daily bars, adjustment factors and price limits for
// the given symbols and appends them to the segment store. A failing
// symbol is reported in its PullResult and does not stop the batch.
func (s *Service) PullDaily(ctx context.Context, tsCodes []string, start, end string, cfg Config) ([]PullResult, error) {
	if len(tsCodes) == 0 {
		return nil, fmt.Errorf("pull daily: no symbols given: %w", contracts.ErrValidation)
	}

	workers := cfg.workers()
	s.logger.WithFields(map[string]interface{}{
		"symbols": len(tsCodes),
		"start":   start,
		"end":     end,
		"workers": workers,
	}).Info("Starting daily pull")

	codeCh := make(chan string, len(tsCodes))
	resultCh := make(chan PullResult, len(tsCodes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.pullWorker(ctx, workerID, codeCh, resultCh, start, end)
		}(i)
	}

	for _, code := range tsCodes {
		codeCh <- code
	}
	close(codeCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]PullResult, 0, len(tsCodes))
	succeeded := 0
	failed := 0
	for res := range resultCh {
		results = append(results, res)
		if res.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"success": succeeded,
		"failed":  failed,
		"total":   len(results),
	}).Info("Daily pull completed")

	return results, nil
}

func (s *Service) pullWorker(ctx context.Context, workerID int, codeCh <-chan string, resultCh chan<- PullResult, start, end string) {
	for code := range codeCh {
		select {
		case <-ctx.Done():
			resultCh <- PullResult{TsCode: code, Err: ctx.Err()}
			return
		default:
		}

		res := s.pullSymbol(ctx, code, start, end)
		if res.Err != nil {
			s.logger.WithError(res.Err).WithFields(map[string]interface{}{
				"worker":  workerID,
				"ts_code": code,
			}).Error("Failed to pull symbol")
		} else {
			s.logger.WithFields(map[string]interface{}{
				"worker":  workerID,
				"ts_code": code,
				"bars":    res.Bars,
			}).Debug("Pulled symbol")
		}
		resultCh <- res
	}
}

func (s *Service) pullSymbol(ctx context.Context, tsCode, start, end string) PullResult {
	res := PullResult{TsCode: tsCode}

	bars, err := s.provider.FetchDaily(ctx, tsCode, start, end)
	if err != nil {
		res.Err = fmt.Errorf("fetch daily: %w", err)
		return res
	}
	if len(bars) > 0 {
		n, err := s.store.AppendBars(ctx, tsCode, bars)
		if err != nil {
			res.Err = fmt.Errorf("append bars: %w", err)
			return res
		}
		res.Bars = n
	}

	factors, err := s.provider.FetchAdjFactors(ctx, tsCode, start, end)
	if err != nil {
		res.Err = fmt.Errorf("fetch adj factors: %w", err)
		return res
	}
	if len(factors) > 0 {
		n, err := s.store.AppendAdjFactors(ctx, tsCode, factors)
		if err != nil {
			res.Err = fmt.Errorf("append adj factors: %w", err)
			return res
		}
		res.AdjFactors = n
	}

	limits, err := s.provider.FetchLimits(ctx, tsCode, start, end)
	if err != nil {
		res.Err = fmt.Errorf("fetch limits: %w", err)
		return res
	}
	if len(limits) > 0 {
		n, err := s.store.AppendLimits(ctx, tsCode, limits)
		if err != nil {
			res.Err = fmt.Errorf("append limits: %w", err)
			return res
		}
		res.Limits = n
	}

	return res
}

// ComputeIndicators recomputes the full indicator set for each symbol
// from its stored bars and replaces the symbol's indicator partition.
// Symbols without bars are skipped. Returns the number of symbols
// whose indicators were written.
func (s *Service) ComputeIndicators(ctx context.Context, tsCodes []string, cfg Config) (int, error) {
	if len(tsCodes) == 0 {
		return 0, fmt.Errorf("compute indicators: no symbols given: %w", contracts.ErrValidation)
	}

	s.logger.WithFields(map[string]interface{}{
		"symbols": len(tsCodes),
		"workers": cfg.workers(),
	}).Info("Starting indicator computation")

	var computed atomic.Int64
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for _, code := range tsCodes {
		code := code
		g.Go(func() error {
			bars, err := s.store.ReadBars(gctx, code, "", "")
			if err != nil {
				return fmt.Errorf("%s: read bars: %w", code, err)
			}
			if len(bars) == 0 {
				skipped.Add(1)
				return nil
			}

			rows := indicator.Compute(bars)
			if _, err := s.store.ReplaceIndicators(gctx, code, rows); err != nil {
				return fmt.Errorf("%s: replace indicators: %w", code, err)
			}
			computed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(computed.Load()), err
	}

	s.logger.WithFields(map[string]interface{}{
		"computed": computed.Load(),
		"skipped":  skipped.Load(),
	}).Info("Indicator computation completed")

	return int(computed.Load()), nil
}
