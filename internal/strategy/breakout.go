package strategy

import (
	"fmt"
	"math"

	"github.com/minqi/freedom/internal/contracts"
)

// BreakoutParams tunes the early-breakout model.
type BreakoutParams struct {
	BaseLookback     int
	BreakoutLookback int
	MAFast           int
	MAMid            int
	MASlow           int
	MATrend          int
	VolMA            int
	VolRatioTh       float64
	BodyRatioTh      float64
	RSIRegime        float64
	CooldownDays     int
	ExtremeMovePct   float64
}

// DefaultBreakoutParams returns the production parameter set.
func DefaultBreakoutParams() BreakoutParams {
	return BreakoutParams{
		BaseLookback:     30,
		BreakoutLookback: 20,
		MAFast:           5,
		MAMid:            10,
		MASlow:           20,
		MATrend:          60,
		VolMA:            5,
		VolRatioTh:       1.8,
		BodyRatioTh:      0.6,
		RSIRegime:        50,
		CooldownDays:     5,
		ExtremeMovePct:   0.09,
	}
}

// After a BUY the close must stay above the breakout reference for this
// many rows, or the position is force-exited.
const breakoutGraceDays = 10

// BreakoutModel detects consolidation platforms broken out on volume
// with momentum confirmation. Signals for the whole history are fixed
// at construction.
type BreakoutModel struct {
	code    string
	params  BreakoutParams
	index   map[string]int
	invalid []bool
	signals []contracts.Signal
}

// NewBreakoutModel builds the model from a symbol's joined series.
func NewBreakoutModel(code string, points []Point, params BreakoutParams) *BreakoutModel {
	points = prepare(points)
	m := &BreakoutModel{
		code:   code,
		params: params,
		index:  make(map[string]int, len(points)),
	}
	for i, p := range points {
		m.index[p.Date] = i
	}
	m.precompute(points)
	return m
}

func (m *BreakoutModel) precompute(points []Point) {
	p := m.params
	n := len(points)
	if n == 0 {
		return
	}

	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	volume := make([]float64, n)
	dif := make([]float64, n)
	dea := make([]float64, n)
	rsi := make([]float64, n)
	for i, pt := range points {
		open[i] = pt.Open
		high[i] = pt.High
		low[i] = pt.Low
		close[i] = pt.Close
		volume[i] = pt.Volume
		dif[i] = pt.Dif
		dea[i] = pt.Dea
		rsi[i] = pt.RSI
	}

	maFast := rollingMeanStrict(close, p.MAFast)
	maMid := rollingMeanStrict(close, p.MAMid)
	maSlow := rollingMeanStrict(close, p.MASlow)
	maSlowSlope := make([]float64, n)
	{
		prev := shift(maSlow)
		for i := range maSlowSlope {
			maSlowSlope[i] = maSlow[i] - prev[i]
		}
	}

	baseHigh := rollingMaxStrict(high, p.BaseLookback)
	baseLow := rollingMinStrict(low, p.BaseLookback)

	hh := shift(rollingMaxStrict(high, p.BreakoutLookback))
	hhPrev := shift(hh)
	closePrev := shift(close)
	difPrev := shift(dif)
	deaPrev := shift(dea)
	rsiPrev := shift(rsi)
	lowPrev := shift(low)

	volMA := rollingMeanStrict(volume, p.VolMA)
	volMA5 := rollingMeanStrict(volume, 5)

	extreme := pctChange(close)

	m.invalid = make([]bool, n)
	m.signals = make([]contracts.Signal, 0, n)

	var activeBreakout float64 = math.NaN()
	holding := false
	daysSinceBuy := 0

	for i := 0; i < n; i++ {
		m.invalid[i] = anyNaN(open[i], high[i], low[i], close[i], volume[i], dif[i], dea[i], rsi[i])

		// Platform: at least two of range compression, sticky moving
		// averages, and bounded prior run-up.
		platformCnt := 0
		if (baseHigh[i]-baseLow[i])/close[i] <= 0.35 {
			platformCnt++
		}
		if math.Abs(maFast[i]-maMid[i])/close[i] < 0.03 && math.Abs(maMid[i]-maSlow[i])/close[i] < 0.05 {
			platformCnt++
		}
		if close[i]/baseLow[i] <= 1.6 {
			platformCnt++
		}

		// Breakout: first close above the prior rolling high, bullish
		// body, expanded volume.
		body := close[i] - open[i]
		span := high[i] - low[i]
		bodyRatio := math.NaN()
		if span != 0 {
			bodyRatio = body / span
		}
		bullishBody := close[i] > open[i] && bodyRatio >= p.BodyRatioTh
		volExpand := volume[i] >= p.VolRatioTh*volMA[i]
		firstBreak := closePrev[i] <= hhPrev[i]
		breakoutValid := close[i] > hh[i] && firstBreak && bullishBody && volExpand

		// Momentum: any one of MACD cross-up, RSI midline cross, or a
		// bullish moving-average stack.
		momentumCnt := 0
		if dif[i] > dea[i] && difPrev[i] <= deaPrev[i] && dif[i]-dea[i] > 0 {
			momentumCnt++
		}
		if rsi[i] > p.RSIRegime && rsiPrev[i] <= p.RSIRegime {
			momentumCnt++
		}
		if maFast[i] > maMid[i] && maMid[i] > maSlow[i] && maSlowSlope[i] > 0 {
			momentumCnt++
		}

		baseBuy := platformCnt >= 2 && breakoutValid && momentumCnt >= 1

		macdCrossDown := dif[i] < dea[i] && difPrev[i] >= deaPrev[i] && dif[i] > 0 && dea[i] > 0
		sellMA := close[i] < maSlow[i] && maSlowSlope[i] < 0
		sellBreak := close[i] < open[i] && volume[i] > 1.5*volMA5[i] && close[i] < lowPrev[i]
		baseSell := sellMA || macdCrossDown || sellBreak

		if holding {
			daysSinceBuy++
		}

		var signal contracts.Signal
		if m.invalid[i] || math.Abs(extreme[i]) >= p.ExtremeMovePct {
			signal = contracts.SignalHold
		} else {
			// The failure exit after a fresh BUY outranks the
			// ordinary sell rule.
			sellFail := holding && daysSinceBuy <= breakoutGraceDays && close[i] < activeBreakout

			var candidate contracts.Signal
			switch {
			case sellFail:
				candidate = contracts.SignalSell
			case baseBuy:
				candidate = contracts.SignalBuy
			case baseSell:
				candidate = contracts.SignalSell
			default:
				candidate = contracts.SignalHold
			}

			if candidate.IsAction() && recentContains(m.signals, i, p.CooldownDays, candidate) {
				signal = contracts.SignalHold
			} else {
				signal = candidate
			}
		}

		switch signal {
		case contracts.SignalBuy:
			activeBreakout = hh[i]
			holding = true
			daysSinceBuy = 0
		case contracts.SignalSell:
			activeBreakout = math.NaN()
			holding = false
			daysSinceBuy = 0
		}

		m.signals = append(m.signals, signal)
	}
}

// Predict implements Model.
func (m *BreakoutModel) Predict(date string) (contracts.Signal, error) {
	i, ok := m.index[date]
	if !ok {
		return "", fmt.Errorf("%s: date %s: %w", m.code, date, contracts.ErrNotFound)
	}
	if m.invalid[i] {
		return contracts.SignalHold, nil
	}
	return m.signals[i], nil
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
