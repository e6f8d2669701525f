// Package strategy holds the rule-based signal models. A model is built
// once from a symbol's full joined bar and indicator history and is
// immutable afterwards; build a new instance to pick up fresh data.
package strategy

import (
	"math"
	"sort"

	"github.com/minqi/freedom/internal/contracts"
)

// Model is the shared contract of every signal model.
type Model interface {
	// Predict returns the signal for one trading day. It fails with
	// ErrNotFound when the date is absent from the loaded history.
	Predict(date string) (contracts.Signal, error)
}

// Point is one trading day of the joined bar and indicator series the
// models consume. Indicator fields are NaN when no indicator row exists
// for the date.
type Point struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	Dif  float64 // MACD line
	Dea  float64 // MACD signal line
	RSI  float64
	KdjK float64
	KdjD float64
}

// BuildSeries left-joins indicator rows onto bars by trade date. Bars
// drive the result; dates without an indicator row carry NaN indicator
// fields.
func BuildSeries(bars []contracts.Bar, indicators []contracts.IndicatorRow) []Point {
	byDate := make(map[string]contracts.IndicatorRow, len(indicators))
	for _, row := range indicators {
		byDate[row.TradeDate] = row
	}

	nan := math.NaN()
	points := make([]Point, 0, len(bars))
	for _, b := range bars {
		p := Point{
			Date:   b.TradeDate,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Vol,
			Dif:    nan,
			Dea:    nan,
			RSI:    nan,
			KdjK:   nan,
			KdjD:   nan,
		}
		if ind, ok := byDate[b.TradeDate]; ok {
			p.Dif = ind.MACD
			p.Dea = ind.MACDSignal
			p.RSI = ind.RSI
			p.KdjK = ind.KdjK
			p.KdjD = ind.KdjD
		}
		points = append(points, p)
	}
	return points
}

// prepare sorts points by date and drops duplicate dates keeping the
// last occurrence.
func prepare(points []Point) []Point {
	out := make([]Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	deduped := out[:0]
	for i, p := range out {
		if i+1 < len(out) && out[i+1].Date == p.Date {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Rolling helpers below follow strict-window semantics: the result is
// NaN until the window is full, and NaN inputs poison their windows.
// This is deliberately different from the indicator engine's expanding
// windows.

func rollingMeanStrict(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func rollingMaxStrict(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		max := math.Inf(-1)
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			if values[j] > max {
				max = values[j]
			}
		}
		if ok {
			out[i] = max
		}
	}
	return out
}

func rollingMinStrict(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		min := math.Inf(1)
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			if values[j] < min {
				min = values[j]
			}
		}
		if ok {
			out[i] = min
		}
	}
	return out
}

// shift returns the series moved forward one row, NaN at the head.
func shift(values []float64) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}
	copy(out[1:], values[:len(values)-1])
	return out
}

// pctChange is the one-row relative return, NaN at the head.
func pctChange(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	nan := math.NaN()
	for i := range out {
		out[i] = nan
	}
	return out
}

// recentContains reports whether signal was emitted in the cooldown
// window ending just before position i.
func recentContains(signals []contracts.Signal, i, cooldown int, signal contracts.Signal) bool {
	start := i - cooldown
	if start < 0 {
		start = 0
	}
	for _, s := range signals[start:i] {
		if s == signal {
			return true
		}
	}
	return false
}
