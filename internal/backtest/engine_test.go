package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/indicator"
	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/pkg/logger"
)

func seedSymbol(t *testing.T, store *segstore.Store, tsCode string, closes []float64) {
	t.Helper()
	ctx := context.Background()

	bars := make([]contracts.Bar, len(closes))
	for i, c := range closes {
		bars[i] = contracts.Bar{
			TsCode:    tsCode,
			TradeDate: fmt.Sprintf("2024%04d", i+101),
			Open:      c - 0.05,
			High:      c + 0.1,
			Low:       c - 0.1,
			Close:     c,
			Vol:       1000,
		}
	}
	_, err := store.AppendBars(ctx, tsCode, bars)
	require.NoError(t, err)

	rows := indicator.Compute(bars)
	_, err = store.ReplaceIndicators(ctx, tsCode, rows)
	require.NoError(t, err)
}

func TestParseStrategyName(t *testing.T) {
	name, err := ParseStrategyName("breakout")
	require.NoError(t, err)
	assert.Equal(t, StrategyBreakout, name)

	name, err = ParseStrategyName("scored")
	require.NoError(t, err)
	assert.Equal(t, StrategyScored, name)

	_, err = ParseStrategyName("momentum")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrValidation))
}

func TestEngineRunSymbol(t *testing.T) {
	store := segstore.New(t.TempDir(), logger.NewNop())
	engine := NewEngine(store, logger.NewNop())

	closes := []float64{10, 10.1, 10.05, 10.2, 10.15, 10.1, 10.2, 10.25, 10.3, 10.2}
	seedSymbol(t, store, "000001.SZ", closes)

	report, err := engine.RunSymbol(context.Background(), StrategyScored, "000001.SZ", "20240101", "20241231", 100_000)
	require.NoError(t, err)
	assert.Equal(t, "000001.SZ", report.TsCode)
	assert.Equal(t, 100_000.0, report.InitialCash)
	// Equity is always cash plus marked position, whatever fired.
	assert.Equal(t, report.Cash+report.PositionValue, report.Equity)
}

func TestEngineRunSymbolUnknown(t *testing.T) {
	store := segstore.New(t.TempDir(), logger.NewNop())
	engine := NewEngine(store, logger.NewNop())

	_, err := engine.RunSymbol(context.Background(), StrategyBreakout, "999999.SZ", "", "", 100_000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestEngineRunAllSkipsFailures(t *testing.T) {
	store := segstore.New(t.TempDir(), logger.NewNop())
	engine := NewEngine(store, logger.NewNop())

	seedSymbol(t, store, "000001.SZ", []float64{10, 10.1, 10.05, 10.2, 10.15})

	portfolio, err := engine.RunAll(
		context.Background(),
		StrategyScored,
		[]string{"000001.SZ", "999999.SZ"},
		"20240101", "20241231",
		100_000,
	)
	require.NoError(t, err)

	assert.Equal(t, 2, portfolio.Symbols)
	assert.Equal(t, 1, portfolio.Succeeded)
	assert.Equal(t, 1, portfolio.Skipped)
	assert.Equal(t, 200_000.0, portfolio.TotalInitial)
	require.Len(t, portfolio.Reports, 1)
}
