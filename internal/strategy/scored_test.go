package strategy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minqi/freedom/internal/contracts"
)

func makeScoredPoints(open, high, low, close, volume, dif, dea, kdjK, kdjD, rsi []float64) []Point {
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
			KdjK:   kdjK[i],
			KdjD:   kdjD[i],
			RSI:    rsi[i],
		}
	}
	return points
}

func TestScoredUpTrendBlocksSell(t *testing.T) {
	points := makeScoredPoints(
		[]float64{10, 11, 12, 12.5},
		[]float64{10.5, 11.5, 12.5, 13.5},
		[]float64{9.5, 10.5, 11.5, 12.0},
		[]float64{10, 11, 12, 13},
		[]float64{100, 100, 100, 90},
		[]float64{1.0, 1.0, 1.0, 0.5},
		[]float64{0.5, 0.5, 0.5, 0.6},
		[]float64{80, 80, 80, 60},
		[]float64{70, 70, 70, 65},
		[]float64{75, 75, 75, 65},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	model := NewScoredModel("T1", points, params)

	sig, err := model.Predict("20250104")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestScoredDownTrendBlocksBuy(t *testing.T) {
	points := makeScoredPoints(
		[]float64{13, 12, 11, 10.5},
		[]float64{13.5, 12.5, 11.5, 11},
		[]float64{12.5, 11.5, 10.5, 10},
		[]float64{13, 12, 11, 10},
		[]float64{100, 100, 100, 90},
		[]float64{-0.6, -0.6, -0.6, -0.4},
		[]float64{-0.5, -0.5, -0.5, -0.5},
		[]float64{20, 20, 20, 25},
		[]float64{30, 30, 30, 24},
		[]float64{25, 25, 25, 28},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	model := NewScoredModel("T2", points, params)

	sig, err := model.Predict("20250104")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestScoredCooldownBlocksConsecutiveBuy(t *testing.T) {
	points := makeScoredPoints(
		[]float64{10, 10.5, 11, 11.5},
		[]float64{10.5, 11, 11.5, 12},
		[]float64{9.8, 10.2, 10.6, 11},
		[]float64{10, 10.8, 11.2, 11.6},
		[]float64{100, 120, 140, 160},
		[]float64{-0.1, -0.1, -0.1, -0.1},
		[]float64{-0.1, -0.1, -0.1, -0.1},
		[]float64{40, 40, 40, 40},
		[]float64{40, 40, 40, 40},
		[]float64{35, 36, 37, 38},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	params.CooldownDays = 2
	params.RangeExtraStrict = false
	params.BuyThreshold = 1.5
	model := NewScoredModel("T3", points, params)

	sig, err := model.Predict("20250103")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalBuy, sig)

	sig, err = model.Predict("20250104")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestScoredExtremeMoveForcesHold(t *testing.T) {
	points := makeScoredPoints(
		[]float64{10, 10.5, 12},
		[]float64{10.5, 11, 12.5},
		[]float64{9.8, 10.2, 11.5},
		[]float64{10, 10.4, 12.5},
		[]float64{100, 110, 120},
		[]float64{-0.6, -0.6, -0.4},
		[]float64{-0.5, -0.5, -0.5},
		[]float64{20, 20, 25},
		[]float64{30, 30, 24},
		[]float64{25, 25, 28},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	params.ExtremeMovePct = 0.05
	params.RangeExtraStrict = false
	model := NewScoredModel("T4", points, params)

	sig, err := model.Predict("20250103")
	require.NoError(t, err)
	assert.Equal(t, contracts.SignalHold, sig)
}

func TestScoredUnknownDate(t *testing.T) {
	points := makeScoredPoints(
		[]float64{10, 10.5},
		[]float64{10.5, 11},
		[]float64{9.8, 10.2},
		[]float64{10, 10.8},
		[]float64{100, 110},
		[]float64{-0.6, -0.6},
		[]float64{-0.5, -0.5},
		[]float64{20, 20},
		[]float64{30, 30},
		[]float64{25, 25},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	model := NewScoredModel("T5", points, params)

	_, err := model.Predict("20250103")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestScoredFeaturesBreakdown(t *testing.T) {
	points := makeScoredPoints(
		[]float64{10, 10.5, 11, 11.5},
		[]float64{10.5, 11, 11.5, 12},
		[]float64{9.8, 10.2, 10.6, 11},
		[]float64{10, 10.8, 11.2, 11.6},
		[]float64{100, 120, 140, 160},
		[]float64{-0.1, -0.1, -0.1, -0.1},
		[]float64{-0.1, -0.1, -0.1, -0.1},
		[]float64{40, 40, 40, 40},
		[]float64{40, 40, 40, 40},
		[]float64{35, 36, 37, 38},
	)
	params := DefaultScoredParams()
	params.MAWindow = 2
	params.VolMAWindow = 2
	params.CooldownDays = 2
	params.RangeExtraStrict = false
	params.BuyThreshold = 1.5
	model := NewScoredModel("T6", points, params)

	feats, err := model.FeaturesAt("20250103")
	require.NoError(t, err)
	assert.Equal(t, TrendUp, feats.TrendState)
	assert.Equal(t, 0.5, feats.ScoreRSI)
	assert.Equal(t, 1.0, feats.ScoreVol)
	assert.Equal(t, 1.5, feats.ScoreTotal)
	assert.Equal(t, contracts.SignalBuy, feats.SignalRaw)
	assert.Equal(t, contracts.SignalBuy, feats.Signal)

	_, err = model.FeaturesAt("20250301")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestScoredEmptySeries(t *testing.T) {
	model := NewScoredModel("T7", nil, DefaultScoredParams())
	require.NotNil(t, model)

	_, err := model.Predict("20250101")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNotFound))

	_, err = model.FeaturesAt("20250101")
	assert.True(t, errors.Is(err, contracts.ErrNotFound))
}

func TestBuildSeriesLeftJoin(t *testing.T) {
	bars := []contracts.Bar{
		{TsCode: "000001.SZ", TradeDate: "20250101", Open: 10, High: 10.5, Low: 9.8, Close: 10.2, Vol: 100},
		{TsCode: "000001.SZ", TradeDate: "20250102", Open: 10.2, High: 10.8, Low: 10, Close: 10.6, Vol: 120},
	}
	indicators := []contracts.IndicatorRow{
		{TsCode: "000001.SZ", TradeDate: "20250101", MACD: 0.1, MACDSignal: 0.05, RSI: 55, KdjK: 60, KdjD: 58},
	}

	points := BuildSeries(bars, indicators)
	require.Len(t, points, 2)

	assert.Equal(t, 0.1, points[0].Dif)
	assert.Equal(t, 0.05, points[0].Dea)
	assert.Equal(t, 55.0, points[0].RSI)

	// The second bar has no indicator row, so those fields are NaN.
	assert.True(t, anyNaN(points[1].Dif, points[1].Dea, points[1].RSI, points[1].KdjK, points[1].KdjD))
	assert.Equal(t, 10.6, points[1].Close)
}
