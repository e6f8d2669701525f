// Package indicator computes the derived technical-indicator vector for
// a symbol's bar history. Compute is a pure function: one output row per
// input bar, all windows keyed by row position. Irregular trading
// calendars are not compensated for.
package indicator

import (
	"math"

	"github.com/minqi/freedom/internal/contracts"
)

// MAPeriods are the moving-average windows carried on every row.
var MAPeriods = []int{5, 10, 20, 30, 60, 120, 200, 250, 500}

const (
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	rsiPeriod = 14

	kdjPeriod  = 9
	kdjKPeriod = 3
	kdjDPeriod = 3

	bollPeriod = 20
	bollWidth  = 2.0

	neutral = 50.0
)

// Compute derives the indicator rows for bars ordered by trade date
// ascending. The result has the same length as the input. Rows early in
// the history may carry NaN for the Bollinger bands; MA, RSI and KDJ
// always hold a finite value.
func Compute(bars []contracts.Bar) []contracts.IndicatorRow {
	if len(bars) == 0 {
		return nil
	}

	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	mas := make(map[int][]float64, len(MAPeriods))
	for _, period := range MAPeriods {
		mas[period] = rollingMean(closes, period)
	}

	macdLine, signalLine, hist := macd(closes)
	rsiVals := rsi(closes, rsiPeriod)
	k, d, j := kdj(highs, lows, closes)
	upper, middle, lower := boll(closes)

	rows := make([]contracts.IndicatorRow, n)
	for i, b := range bars {
		rows[i] = contracts.IndicatorRow{
			TsCode:    b.TsCode,
			TradeDate: b.TradeDate,
			MA5:       mas[5][i],
			MA10:      mas[10][i],
			MA20:      mas[20][i],
			MA30:      mas[30][i],
			MA60:      mas[60][i],
			MA120:     mas[120][i],
			MA200:     mas[200][i],
			MA250:     mas[250][i],
			MA500:     mas[500][i],

			MACD:       macdLine[i],
			MACDSignal: signalLine[i],
			MACDHist:   hist[i],

			RSI: rsiVals[i],

			KdjK: k[i],
			KdjD: d[i],
			KdjJ: j[i],

			BollUpper:  upper[i],
			BollMiddle: middle[i],
			BollLower:  lower[i],
		}
	}
	return rows
}

// rollingMean is a trailing simple moving average that falls back to an
// expanding window while fewer than window points exist.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		count := window
		if i+1 < window {
			count = i + 1
		} else if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(count)
	}
	return out
}

// emaSpan is an exponential moving average with smoothing span, seeded
// at the first value (alpha = 2/(span+1), no bias adjustment).
func emaSpan(values []float64, span int) []float64 {
	return emaAlpha(values, 2.0/float64(span+1))
}

func emaAlpha(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

func macd(closes []float64) (line, signal, hist []float64) {
	fast := emaSpan(closes, macdFast)
	slow := emaSpan(closes, macdSlow)

	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	signal = emaSpan(line, macdSignal)

	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}
	return line, signal, hist
}

// rsi uses plain rolling means of gains and losses, not the exponential
// Wilder variant. Rows with an incomplete window, or where the average
// loss is zero, carry the neutral value 50.
func rsi(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	var gainSum, lossSum float64
	for i := 0; i < n; i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i >= period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}

		if i < period-1 {
			out[i] = neutral
			continue
		}
		avgGain := gainSum / float64(period)
		avgLoss := lossSum / float64(period)
		if avgLoss == 0 {
			out[i] = neutral
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

func kdj(highs, lows, closes []float64) (k, d, j []float64) {
	n := len(closes)
	rsv := make([]float64, n)

	for i := 0; i < n; i++ {
		lo := i - kdjPeriod + 1
		if lo < 0 {
			lo = 0
		}
		lowMin := lows[lo]
		highMax := highs[lo]
		for p := lo + 1; p <= i; p++ {
			if lows[p] < lowMin {
				lowMin = lows[p]
			}
			if highs[p] > highMax {
				highMax = highs[p]
			}
		}

		span := highMax - lowMin
		if span == 0 {
			rsv[i] = neutral
			continue
		}
		rsv[i] = (closes[i] - lowMin) / span * 100
	}

	k = emaAlpha(rsv, 1.0/float64(kdjKPeriod))
	d = emaAlpha(k, 1.0/float64(kdjDPeriod))
	j = make([]float64, n)
	for i := range j {
		j[i] = 3*k[i] - 2*d[i]
	}
	return k, d, j
}

// boll builds Bollinger bands around the expanding-window mean. The
// standard deviation is the sample kind and is undefined for a single
// point, so the very first row's bands are NaN.
func boll(closes []float64) (upper, middle, lower []float64) {
	n := len(closes)
	middle = rollingMean(closes, bollPeriod)
	upper = make([]float64, n)
	lower = make([]float64, n)

	for i := 0; i < n; i++ {
		lo := i - bollPeriod + 1
		if lo < 0 {
			lo = 0
		}
		std := sampleStd(closes[lo : i+1])
		upper[i] = middle[i] + bollWidth*std
		lower[i] = middle[i] - bollWidth*std
	}
	return upper, middle, lower
}

func sampleStd(window []float64) float64 {
	n := len(window)
	if n < 2 {
		return math.NaN()
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range window {
		diff := v - mean
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(n-1))
}
