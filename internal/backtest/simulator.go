// Package backtest replays a signal model against stored bar history
// with whole-lot fills at the close and exchange limit gates.
package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/internal/strategy"
	"github.com/minqi/freedom/pkg/logger"
)

// LotSize is the exchange board lot. Positions are always a whole
// multiple of it.
const LotSize = 100

// Trade is one executed fill.
type Trade struct {
	TsCode        string           `json:"ts_code"`
	TradeDate     string           `json:"trade_date"`
	Action        contracts.Signal `json:"action"`
	Price         float64          `json:"price"`
	Shares        float64          `json:"shares"`
	PositionValue float64          `json:"position_value"`
	Cash          float64          `json:"cash"`
}

// Report summarizes one symbol's simulation.
type Report struct {
	TsCode        string  `json:"ts_code"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	InitialCash   float64 `json:"initial_cash"`
	Cash          float64 `json:"cash"`
	Shares        float64 `json:"shares"`
	PositionValue float64 `json:"position_value"`
	Equity        float64 `json:"equity"`
	Profit        float64 `json:"profit"`
	ReturnRate    float64 `json:"return_rate"`
	Trades        []Trade `json:"trades"`
}

// Simulator replays signals date by date over a bar series.
type Simulator struct {
	log *logger.Logger
}

// NewSimulator creates a new Simulator.
func NewSimulator(log *logger.Logger) *Simulator {
	return &Simulator{log: log}
}

// Run simulates one symbol over bars already filtered to the requested
// date range. Cash starts at initialCash, shares at zero. A BUY fills
// the largest affordable whole-lot position at the close unless the
// close sits at the up limit; a SELL liquidates everything at the close
// unless the close sits at or under the down limit. No partial fills,
// no shorts, no re-buy while holding.
func (s *Simulator) Run(model strategy.Model, bars []contracts.Bar, limits []contracts.PriceLimit, initialCash float64) (*Report, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to simulate: %w", contracts.ErrNotFound)
	}

	ordered := make([]contracts.Bar, len(bars))
	copy(ordered, bars)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TradeDate < ordered[j].TradeDate })

	limitByDate := make(map[string]contracts.PriceLimit, len(limits))
	for _, l := range limits {
		limitByDate[l.TradeDate] = l
	}

	tsCode := ordered[0].TsCode
	report := &Report{
		TsCode:      tsCode,
		StartDate:   ordered[0].TradeDate,
		EndDate:     ordered[len(ordered)-1].TradeDate,
		InitialCash: initialCash,
		Cash:        initialCash,
		Trades:      []Trade{},
	}

	for _, bar := range ordered {
		signal, err := model.Predict(bar.TradeDate)
		if err != nil {
			return nil, fmt.Errorf("predict %s %s: %w", tsCode, bar.TradeDate, err)
		}

		limit, hasLimit := limitByDate[bar.TradeDate]
		close := bar.Close

		switch {
		case signal == contracts.SignalBuy && report.Cash > 0 && report.Shares == 0:
			// A close pinned at the up limit cannot be filled.
			if hasLimit && limit.UpLimit != 0 && close >= limit.UpLimit {
				continue
			}
			lotShares := math.Floor(report.Cash/(close*LotSize)) * LotSize
			if lotShares <= 0 {
				continue
			}
			report.Shares = lotShares
			report.Cash -= lotShares * close
			s.recordTrade(report, bar.TradeDate, contracts.SignalBuy, close, lotShares)

		case signal == contracts.SignalSell && report.Shares > 0:
			if hasLimit && limit.DownLimit != 0 && close <= limit.DownLimit {
				continue
			}
			sold := report.Shares
			report.Cash += sold * close
			report.Shares = 0
			s.recordTrade(report, bar.TradeDate, contracts.SignalSell, close, sold)
		}
	}

	lastClose := ordered[len(ordered)-1].Close
	report.PositionValue = report.Shares * lastClose
	report.Equity = report.Cash + report.PositionValue
	report.Profit = report.Equity - initialCash
	if initialCash > 0 {
		report.ReturnRate = report.Equity/initialCash - 1
	}

	s.log.WithFields(map[string]interface{}{
		"ts_code": tsCode,
		"start":   report.StartDate,
		"end":     report.EndDate,
		"cash":    report.Cash,
		"equity":  report.Equity,
		"profit":  report.Profit,
		"return":  report.ReturnRate,
	}).Info("Backtest finished")

	return report, nil
}

func (s *Simulator) recordTrade(report *Report, date string, action contracts.Signal, price, shares float64) {
	report.Trades = append(report.Trades, Trade{
		TsCode:        report.TsCode,
		TradeDate:     date,
		Action:        action,
		Price:         price,
		Shares:        shares,
		PositionValue: shares * price,
		Cash:          report.Cash,
	})

	s.log.WithFields(map[string]interface{}{
		"ts_code": report.TsCode,
		"date":    date,
		"action":  string(action),
		"price":   price,
		"shares":  shares,
		"cash":    report.Cash,
	}).Info("Trade executed")
}
