package backtest

import (
	"context"
	"fmt"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/segstore"
	"github.com/minqi/freedom/internal/strategy"
	"github.com/minqi/freedom/pkg/logger"
)

// StrategyName selects which signal model a run uses.
type StrategyName string

const (
	StrategyBreakout StrategyName = "breakout"
	StrategyScored   StrategyName = "scored"
)

// ParseStrategyName validates a strategy selector from config or CLI.
func ParseStrategyName(name string) (StrategyName, error) {
	switch StrategyName(name) {
	case StrategyBreakout, StrategyScored:
		return StrategyName(name), nil
	default:
		return "", fmt.Errorf("unknown strategy %q: %w", name, contracts.ErrValidation)
	}
}

// PortfolioReport aggregates per-symbol simulations.
type PortfolioReport struct {
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	Strategy     string    `json:"strategy"`
	Symbols      int       `json:"symbols"`
	Succeeded    int       `json:"succeeded"`
	Skipped      int       `json:"skipped"`
	TotalInitial float64   `json:"total_initial"`
	TotalProfit  float64   `json:"total_profit"`
	TotalReturn  float64   `json:"total_return"`
	Reports      []*Report `json:"reports"`
}

// Engine loads history from the segment store, builds the requested
// model and drives the simulator.
type Engine struct {
	store *segstore.Store
	sim   *Simulator
	log   *logger.Logger
}

// NewEngine creates a backtest engine over the given store.
func NewEngine(store *segstore.Store, log *logger.Logger) *Engine {
	return &Engine{
		store: store,
		sim:   NewSimulator(log),
		log:   log,
	}
}

// BuildModel constructs a signal model from a symbol's full stored
// history. Models see all data, not just the simulated range, matching
// how the precomputed rolling windows need warm-up history.
func (e *Engine) BuildModel(ctx context.Context, name StrategyName, tsCode string) (strategy.Model, error) {
	bars, err := e.store.ReadBars(ctx, tsCode, "", "")
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", tsCode, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bar history for %s: %w", tsCode, contracts.ErrNotFound)
	}
	indicators, err := e.store.ReadIndicators(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("read indicators %s: %w", tsCode, err)
	}

	points := strategy.BuildSeries(bars, indicators)
	switch name {
	case StrategyScored:
		return strategy.NewScoredModel(tsCode, points, strategy.DefaultScoredParams()), nil
	default:
		return strategy.NewBreakoutModel(tsCode, points, strategy.DefaultBreakoutParams()), nil
	}
}

// RunSymbol simulates one symbol over [start, end].
func (e *Engine) RunSymbol(ctx context.Context, name StrategyName, tsCode, start, end string, initialCash float64) (*Report, error) {
	model, err := e.BuildModel(ctx, name, tsCode)
	if err != nil {
		return nil, err
	}

	bars, err := e.store.ReadBars(ctx, tsCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", tsCode, err)
	}
	limits, err := e.store.ReadLimits(ctx, tsCode)
	if err != nil {
		return nil, fmt.Errorf("read limits %s: %w", tsCode, err)
	}

	return e.sim.Run(model, bars, limits, initialCash)
}

// RunAll simulates every symbol in the universe with the same starting
// cash. A symbol whose run fails is logged and skipped; the batch keeps
// going.
func (e *Engine) RunAll(ctx context.Context, name StrategyName, tsCodes []string, start, end string, cashPerSymbol float64) (*PortfolioReport, error) {
	portfolio := &PortfolioReport{
		StartDate:    start,
		EndDate:      end,
		Strategy:     string(name),
		Symbols:      len(tsCodes),
		TotalInitial: cashPerSymbol * float64(len(tsCodes)),
		Reports:      []*Report{},
	}

	for _, tsCode := range tsCodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report, err := e.RunSymbol(ctx, name, tsCode, start, end, cashPerSymbol)
		if err != nil {
			portfolio.Skipped++
			e.log.WithFields(map[string]interface{}{
				"ts_code": tsCode,
				"error":   err.Error(),
			}).Warn("Backtest skipped")
			continue
		}
		portfolio.Succeeded++
		portfolio.TotalProfit += report.Profit
		portfolio.Reports = append(portfolio.Reports, report)
	}

	if portfolio.TotalInitial > 0 {
		portfolio.TotalReturn = portfolio.TotalProfit / portfolio.TotalInitial
	}

	e.log.WithFields(map[string]interface{}{
		"strategy":      string(name),
		"start":         start,
		"end":           end,
		"symbols":       portfolio.Symbols,
		"succeeded":     portfolio.Succeeded,
		"skipped":       portfolio.Skipped,
		"total_profit":  portfolio.TotalProfit,
		"total_initial": portfolio.TotalInitial,
		"total_return":  portfolio.TotalReturn,
	}).Info("Portfolio backtest finished")

	return portfolio, nil
}
