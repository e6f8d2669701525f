package segstore

import (
	"context"
	"fmt"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/pkg/logger"
)

// Store bundles the datasets that make up the time-series side of the
// system: raw daily bars, adjustment factors, exchange price limits, and
// the derived indicator rows. The symbol metadata catalog lives in
// PostgreSQL, not here.
type Store struct {
	Bars       *Dataset[contracts.Bar]
	AdjFactors *Dataset[contracts.AdjFactor]
	Limits     *Dataset[contracts.PriceLimit]
	Indicators *Dataset[contracts.IndicatorRow]

	log *logger.Logger
}

// New opens a store rooted at dataDir.
func New(dataDir string, log *logger.Logger) *Store {
	return &Store{
		Bars:       OpenDataset[contracts.Bar](dataDir, "raw/daily", log),
		AdjFactors: OpenDataset[contracts.AdjFactor](dataDir, "raw/adj_factor", log),
		Limits:     OpenDataset[contracts.PriceLimit](dataDir, "raw/stk_limit", log),
		Indicators: OpenDataset[contracts.IndicatorRow](dataDir, "features/indicators", log),

		log: log,
	}
}

// AppendBars validates and appends daily bars for one symbol. The whole
// batch is rejected before any write when a bar violates high >= low or the
// batch carries a duplicate (symbol, trade date) key. Re-ingesting already
// stored dates writes nothing and succeeds with a zero count.
func (s *Store) AppendBars(ctx context.Context, tsCode string, bars []contracts.Bar) (int, error) {
	for _, bar := range bars {
		if err := bar.Validate(); err != nil {
			return 0, err
		}
	}
	return s.Bars.Append(ctx, tsCode, bars)
}

// AppendAdjFactors appends adjustment factors for one symbol. Existing keys
// are never replaced.
func (s *Store) AppendAdjFactors(ctx context.Context, tsCode string, rows []contracts.AdjFactor) (int, error) {
	return s.AdjFactors.Append(ctx, tsCode, rows)
}

// AppendLimits appends price-limit rows for one symbol.
func (s *Store) AppendLimits(ctx context.Context, tsCode string, rows []contracts.PriceLimit) (int, error) {
	return s.Limits.Append(ctx, tsCode, rows)
}

// ReadBars returns a symbol's bars within [start, end] (both optional
// 8-digit dates), ordered by trade date ascending; empty when the symbol
// has no partitions yet.
func (s *Store) ReadBars(ctx context.Context, tsCode, start, end string) ([]contracts.Bar, error) {
	return s.Bars.ReadRange(ctx, tsCode, start, end)
}

// ReadAdjFactors returns a symbol's adjustment factors in date order.
func (s *Store) ReadAdjFactors(ctx context.Context, tsCode string) ([]contracts.AdjFactor, error) {
	return s.AdjFactors.Read(ctx, tsCode)
}

// ReadLimits returns a symbol's price limits in date order.
func (s *Store) ReadLimits(ctx context.Context, tsCode string) ([]contracts.PriceLimit, error) {
	return s.Limits.Read(ctx, tsCode)
}

// ReadIndicators returns a symbol's indicator rows in date order.
func (s *Store) ReadIndicators(ctx context.Context, tsCode string) ([]contracts.IndicatorRow, error) {
	return s.Indicators.Read(ctx, tsCode)
}

// ReplaceIndicators drops a symbol's stored indicator history and writes the
// freshly computed rows. The indicator batch always recalculates a symbol's
// full history, so stale partitions must not survive.
func (s *Store) ReplaceIndicators(ctx context.Context, tsCode string, rows []contracts.IndicatorRow) (int, error) {
	if err := s.Indicators.DropSymbol(tsCode); err != nil {
		return 0, fmt.Errorf("drop indicators for %s: %w", tsCode, err)
	}
	return s.Indicators.Append(ctx, tsCode, rows)
}

// CompactBars merges multi-segment daily-bar partitions, optionally filtered
// to one symbol and/or year.
func (s *Store) CompactBars(ctx context.Context, tsCode, year string) (CompactResult, error) {
	return s.Bars.Compact(ctx, tsCode, year)
}
