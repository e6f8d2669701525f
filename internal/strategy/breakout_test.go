package strategy

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/internal/contracts"
)

func makePoints(open, high, low, close, volume, dif, dea, rsi []float64) []Point {
	points := make([]Point, len(close))
	for i := range points {
		points[i] = Point{
			Date:   fmt.Sprintf("2025%04d", i+101),
			Open:   open[i],
			High:   high[i],
			Low:    low[i],
			Close:  close[i],
			Volume: volume[i],
			Dif:    dif[i],
			Dea:    dea[i],
			RSI:    rsi[i],
			KdjK:   math.NaN(),
			KdjD:   math.NaN(),
		}
	}
	return points
}

// Lookbacks scaled down so an 8 row series can qualify. The extreme
// move threshold is relaxed alongside them: the compressed fixture
// jumps far more per row than a realistic series would.
func shortSeriesParams() BreakoutParams {
	p := DefaultBreakoutParams()
	p.BaseLookback = 5
	p.BreakoutLookback = 3
	p.MAFast = 2
	p.MAMid = 3
	p.MASlow = 4
	p.MATrend = 5
	p.VolMA = 2
	p.CooldownDays = 2
	p.ExtremeMovePct = 0.2
	return p
}

func TestBreakoutBuy(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.05, 10.0, 10.02, 10.01, 10.02, 10.1, 10.5},
		[]float64{10.2, 10.2, 10.15, 10.2, 10.2, 10.2, 10.3, 11.6},
		[]float64{9.9, 9.95, 9.9, 9.95, 9.95, 9.95, 10.0, 10.4},
		[]float64{10.0, 10.0, 10.05, 10.03, 10.02, 10.05, 10.2, 11.5},
		[]float64{100, 100, 100, 100, 100, 100, 100, 900},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.1},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.05},
		[]float64{45, 46, 47, 48, 49, 49, 49, 55},
	)
	model := NewBreakoutModel("T1", points, shortSeriesParams())

	sig, err := model.Predict("20250108")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalBuy, sig)
}

func TestBreakoutCooldownBlocksSecondBuy(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.05, 10.0, 10.02, 10.01, 10.02, 10.1, 10.5, 10.6},
		[]float64{10.2, 10.2, 10.15, 10.2, 10.2, 10.2, 10.3, 11.6, 11.8},
		[]float64{9.9, 9.95, 9.9, 9.95, 9.95, 9.95, 10.0, 10.4, 10.5},
		[]float64{10.0, 10.0, 10.05, 10.03, 10.02, 10.05, 10.2, 11.5, 11.7},
		[]float64{100, 100, 100, 100, 100, 100, 100, 900, 900},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.1, 0.1},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.05, 0.05},
		[]float64{45, 46, 47, 48, 49, 49, 49, 55, 55},
	)
	params := shortSeriesParams()
	params.CooldownDays = 5
	model := NewBreakoutModel("T2", points, params)

	sig, err := model.Predict("20250108")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalBuy, sig)

	sig, err = model.Predict("20250109")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestBreakoutFailureExitSells(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.05, 10.0, 10.02, 10.01, 10.02, 10.1, 10.5, 10.4},
		[]float64{10.2, 10.2, 10.15, 10.2, 10.2, 10.2, 10.3, 11.6, 10.6},
		[]float64{9.9, 9.95, 9.9, 9.95, 9.95, 9.95, 10.0, 10.4, 9.8},
		[]float64{10.0, 10.0, 10.05, 10.03, 10.02, 10.05, 10.2, 11.5, 9.9},
		[]float64{100, 100, 100, 100, 100, 100, 100, 900, 150},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.1, 0.1},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.05, 0.05},
		[]float64{45, 46, 47, 48, 49, 49, 49, 55, 40},
	)
	model := NewBreakoutModel("T3", points, shortSeriesParams())

	sig, err := model.Predict("20250108")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalBuy, sig)

	// Close fell back under the breakout reference inside the grace
	// window, forcing the failure exit.
	sig, err = model.Predict("20250109")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalSell, sig)
}

func TestBreakoutExtremeMoveForcesHold(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.0, 10.0},
		[]float64{10.1, 10.1, 12.0},
		[]float64{9.9, 9.9, 9.9},
		[]float64{10.0, 10.0, 12.0},
		[]float64{100, 100, 900},
		[]float64{0, 0, 0.1},
		[]float64{0, 0, 0.05},
		[]float64{45, 46, 55},
	)
	params := DefaultBreakoutParams()
	params.BaseLookback = 2
	params.BreakoutLookback = 2
	params.MAFast = 2
	params.MAMid = 2
	params.MASlow = 2
	params.MATrend = 2
	params.VolMA = 2

	model := NewBreakoutModel("T4", points, params)

	sig, err := model.Predict("20250103")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestBreakoutMissingFieldForcesHold(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.05, 10.0, 10.02, 10.01, 10.02, 10.1, 10.5},
		[]float64{10.2, 10.2, 10.15, 10.2, 10.2, 10.2, 10.3, 11.6},
		[]float64{9.9, 9.95, 9.9, 9.95, 9.95, 9.95, 10.0, 10.4},
		[]float64{10.0, 10.0, 10.05, 10.03, 10.02, 10.05, 10.2, 11.5},
		[]float64{100, 100, 100, 100, 100, 100, 100, 900},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.1},
		[]float64{0, 0, 0, 0, 0, 0, 0, 0.05},
		[]float64{45, 46, 47, 48, 49, 49, 49, 55},
	)
	points[7].RSI = math.NaN()
	model := NewBreakoutModel("T5", points, shortSeriesParams())

	sig, err := model.Predict("20250108")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestBreakoutUnknownDate(t *testing.T) {
	points := makePoints(
		[]float64{10, 10.05},
		[]float64{10.2, 10.2},
		[]float64{9.9, 9.95},
		[]float64{10.0, 10.0},
		[]float64{100, 100},
		[]float64{0, 0},
		[]float64{0, 0},
		[]float64{45, 46},
	)
	model := NewBreakoutModel("T6", points, DefaultBreakoutParams())

	_, err := model.Predict("20250301")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestBreakoutEmptySeries(t *testing.T) {
	model := NewBreakoutModel("T7", nil, DefaultBreakoutParams())
	require.NotNil(t, model)

	_, err := model.Predict("20250101")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestPrepareSortsAndDedupes(t *testing.T) {
	points := []Point{
		{Date: "20250103", Close: 3},
		{Date: "20250101", Close: 1},
		{Date: "20250103", Close: 4}, // duplicate date, last wins
		{Date: "20250102", Close: 2},
	}
	out := prepare(points)
	require.Len(t, out, 3)
	assert.Equal(t, "20250101", out[0].Date)
	assert.Equal(t, "20250102", out[1].Date)
	assert.Equal(t, "20250103", out[2].Date)
	assert.Equal(t, 4.0, out[2].Close)
}
