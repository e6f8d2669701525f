package strategy

import (
	"fmt"
	"math"

	"github.com/minqi/freedom/internal/contracts"
)

// TrendState classifies price relative to its moving average.
type TrendState string

const (
	TrendUp    TrendState = "UP"
	TrendDown  TrendState = "DOWN"
	TrendRange TrendState = "RANGE"
)

// ScoredParams tunes the scored-indicator model.
type ScoredParams struct {
	MAWindow           int
	VolMAWindow        int
	CooldownDays       int
	ExtremeMovePct     float64
	RequireMinPositive int
	RequireMinNegative int
	BuyThreshold       float64
	SellThreshold      float64
	RangeExtraStrict   bool
	RangeThresholdBump float64
}

// DefaultScoredParams returns the production parameter set.
func DefaultScoredParams() ScoredParams {
	return ScoredParams{
		MAWindow:           20,
		VolMAWindow:        5,
		CooldownDays:       3,
		ExtremeMovePct:     0.08,
		RequireMinPositive: 2,
		RequireMinNegative: 2,
		BuyThreshold:       2.0,
		SellThreshold:      -2.0,
		RangeExtraStrict:   true,
		RangeThresholdBump: 0.5,
	}
}

// Features exposes the per-date sub-scores for inspection.
type Features struct {
	TrendState TrendState       `json:"trend_state"`
	ScoreMACD  float64          `json:"score_macd"`
	ScoreKDJ   float64          `json:"score_kdj"`
	ScoreRSI   float64          `json:"score_rsi"`
	ScoreVol   float64          `json:"score_vol"`
	ScoreTotal float64          `json:"score_total"`
	SignalRaw  contracts.Signal `json:"signal_raw"`
	Signal     contracts.Signal `json:"signal"`
}

// ScoredModel sums four independent indicator sub-scores per date and
// filters the result by trend state, extreme moves and a cooldown.
type ScoredModel struct {
	code     string
	params   ScoredParams
	index    map[string]int
	dates    []string
	features []Features
}

// NewScoredModel builds the model from a symbol's joined series.
func NewScoredModel(code string, points []Point, params ScoredParams) *ScoredModel {
	points = prepare(points)
	m := &ScoredModel{
		code:   code,
		params: params,
		index:  make(map[string]int, len(points)),
		dates:  make([]string, len(points)),
	}
	for i, p := range points {
		m.index[p.Date] = i
		m.dates[i] = p.Date
	}
	m.precompute(points)
	return m
}

func (m *ScoredModel) precompute(points []Point) {
	p := m.params
	n := len(points)
	if n == 0 {
		return
	}

	close := make([]float64, n)
	volume := make([]float64, n)
	dif := make([]float64, n)
	dea := make([]float64, n)
	k := make([]float64, n)
	d := make([]float64, n)
	rsi := make([]float64, n)
	for i, pt := range points {
		close[i] = pt.Close
		volume[i] = pt.Volume
		dif[i] = pt.Dif
		dea[i] = pt.Dea
		k[i] = pt.KdjK
		d[i] = pt.KdjD
		rsi[i] = pt.RSI
	}

	ma := rollingMeanStrict(close, p.MAWindow)
	maPrev := shift(ma)
	volMA := rollingMeanStrict(volume, p.VolMAWindow)

	closePrev := shift(close)
	difPrev := shift(dif)
	deaPrev := shift(dea)
	kPrev := shift(k)
	dPrev := shift(d)
	rsiPrev := shift(rsi)
	rsiPrev2 := shift(rsiPrev)

	ret := pctChange(close)

	m.features = make([]Features, n)
	raw := make([]contracts.Signal, n)
	filtered := make([]contracts.Signal, n)

	for i := 0; i < n; i++ {
		maSlope := ma[i] - maPrev[i]

		trend := TrendRange
		switch {
		case close[i] > ma[i] && maSlope > 0:
			trend = TrendUp
		case close[i] < ma[i] && maSlope < 0:
			trend = TrendDown
		}

		buyTh := p.BuyThreshold
		sellTh := p.SellThreshold
		if p.RangeExtraStrict && trend == TrendRange {
			buyTh += p.RangeThresholdBump
			sellTh -= p.RangeThresholdBump
		}

		macdCrossUp := dif[i] > dea[i] && difPrev[i] <= deaPrev[i]
		macdCrossDown := dif[i] < dea[i] && difPrev[i] >= deaPrev[i]
		scoreMACD := 0.0
		switch {
		case macdCrossUp && dif[i] < 0 && dea[i] < 0:
			scoreMACD = 1.0
		case macdCrossUp && dif[i] > 0 && dea[i] > 0:
			scoreMACD = 0.5
		case macdCrossDown && dif[i] > 0 && dea[i] > 0:
			scoreMACD = -1.0
		case macdCrossDown && dif[i] < 0 && dea[i] < 0:
			scoreMACD = -0.5
		}

		kdjCrossUp := k[i] > d[i] && kPrev[i] <= dPrev[i]
		kdjCrossDown := k[i] < d[i] && kPrev[i] >= dPrev[i]
		scoreKDJ := 0.0
		switch {
		case kdjCrossUp && k[i] < 30:
			scoreKDJ = 1.0
		case kdjCrossUp && k[i] >= 30 && k[i] < 50:
			scoreKDJ = 0.5
		case kdjCrossDown && k[i] > 70:
			scoreKDJ = -1.0
		case kdjCrossDown && k[i] > 50 && k[i] <= 70:
			scoreKDJ = -0.5
		}

		rsiUpturn := rsi[i] > rsiPrev[i] && rsiPrev[i] <= rsiPrev2[i]
		rsiDownturn := rsi[i] < rsiPrev[i] && rsiPrev[i] >= rsiPrev2[i]
		scoreRSI := 0.0
		switch {
		case rsi[i] < 30 && rsiUpturn:
			scoreRSI = 1.0
		case rsi[i] >= 30 && rsi[i] < 50 && rsi[i] > rsiPrev[i]:
			scoreRSI = 0.5
		case rsi[i] > 70 && rsiDownturn:
			scoreRSI = -1.0
		case rsi[i] > 50 && rsi[i] <= 70 && rsi[i] < rsiPrev[i]:
			scoreRSI = -0.5
		}

		scoreVol := 0.0
		volExpand := volume[i] > volMA[i]
		switch {
		case close[i] > closePrev[i] && volExpand:
			scoreVol = 1.0
		case close[i] < closePrev[i] && volExpand:
			scoreVol = -1.0
		}

		total := scoreMACD + scoreKDJ + scoreRSI + scoreVol
		posCnt := countSign(1, scoreMACD, scoreKDJ, scoreRSI, scoreVol)
		negCnt := countSign(-1, scoreMACD, scoreKDJ, scoreRSI, scoreVol)

		// Conflicting evidence on both sides cancels out.
		switch {
		case posCnt >= 2 && negCnt >= 2:
			raw[i] = contracts.SignalHold
		case total >= buyTh && posCnt >= p.RequireMinPositive:
			raw[i] = contracts.SignalBuy
		case total <= sellTh && negCnt >= p.RequireMinNegative:
			raw[i] = contracts.SignalSell
		default:
			raw[i] = contracts.SignalHold
		}

		// Never fight the trend, and sit out extreme single-day moves.
		filtered[i] = raw[i]
		if trend == TrendUp && raw[i] == contracts.SignalSell {
			filtered[i] = contracts.SignalHold
		}
		if trend == TrendDown && raw[i] == contracts.SignalBuy {
			filtered[i] = contracts.SignalHold
		}
		if math.Abs(ret[i]) >= p.ExtremeMovePct {
			filtered[i] = contracts.SignalHold
		}

		m.features[i] = Features{
			TrendState: trend,
			ScoreMACD:  scoreMACD,
			ScoreKDJ:   scoreKDJ,
			ScoreRSI:   scoreRSI,
			ScoreVol:   scoreVol,
			ScoreTotal: total,
			SignalRaw:  raw[i],
		}
	}

	final := make([]contracts.Signal, 0, n)
	for i, sig := range filtered {
		if sig.IsAction() && recentContains(final, i, p.CooldownDays, sig) {
			final = append(final, contracts.SignalHold)
			continue
		}
		final = append(final, sig)
	}

	for i := range m.features {
		m.features[i].Signal = final[i]
		if math.IsNaN(close[i]) {
			m.features[i].Signal = contracts.SignalHold
			m.features[i].SignalRaw = contracts.SignalHold
		}
	}
}

// Predict implements Model.
func (m *ScoredModel) Predict(date string) (contracts.Signal, error) {
	i, ok := m.index[date]
	if !ok {
		return "", fmt.Errorf("%s: date %s: %w", m.code, date, contracts.ErrNotFound)
	}
	return m.features[i].Signal, nil
}

// FeaturesAt returns the sub-score breakdown for one date.
func (m *ScoredModel) FeaturesAt(date string) (Features, error) {
	i, ok := m.index[date]
	if !ok {
		return Features{}, fmt.Errorf("%s: date %s: %w", m.code, date, contracts.ErrNotFound)
	}
	return m.features[i], nil
}

// Dates returns the model's loaded trading days in ascending order.
func (m *ScoredModel) Dates() []string {
	return m.dates
}

func countSign(sign int, scores ...float64) int {
	cnt := 0
	for _, s := range scores {
		if sign > 0 && s > 0 {
			cnt++
		}
		if sign < 0 && s < 0 {
			cnt++
		}
	}
	return cnt
}
