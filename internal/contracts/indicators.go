package contracts

import (
	"encoding/json"
	"math"
)

// IndicatorRow is the fixed derived-indicator vector for one symbol and
// trading day. One row exists per source bar. Values may be NaN before
// enough history has accumulated; RSI and the KDJ family never are.
type IndicatorRow struct {
	TsCode    string `parquet:"ts_code" json:"ts_code"`
	TradeDate string `parquet:"trade_date" json:"trade_date"`

	MA5   float64 `parquet:"ma5" json:"ma5"`
	MA10  float64 `parquet:"ma10" json:"ma10"`
	MA20  float64 `parquet:"ma20" json:"ma20"`
	MA30  float64 `parquet:"ma30" json:"ma30"`
	MA60  float64 `parquet:"ma60" json:"ma60"`
	MA120 float64 `parquet:"ma120" json:"ma120"`
	MA200 float64 `parquet:"ma200" json:"ma200"`
	MA250 float64 `parquet:"ma250" json:"ma250"`
	MA500 float64 `parquet:"ma500" json:"ma500"`

	MACD       float64 `parquet:"macd" json:"macd"`
	MACDSignal float64 `parquet:"macd_signal" json:"macd_signal"`
	MACDHist   float64 `parquet:"macd_hist" json:"macd_hist"`

	RSI float64 `parquet:"rsi" json:"rsi"`

	KdjK float64 `parquet:"kdj_k" json:"kdj_k"`
	KdjD float64 `parquet:"kdj_d" json:"kdj_d"`
	KdjJ float64 `parquet:"kdj_j" json:"kdj_j"`

	BollUpper  float64 `parquet:"boll_upper" json:"boll_upper"`
	BollMiddle float64 `parquet:"boll_middle" json:"boll_middle"`
	BollLower  float64 `parquet:"boll_lower" json:"boll_lower"`
}

// Key returns the (symbol, trade date) primary key.
func (r IndicatorRow) Key() (string, string) {
	return r.TsCode, r.TradeDate
}

// MarshalJSON emits NaN values as null. encoding/json rejects NaN
// outright, and the warm-up rows of window indicators carry NaNs.
func (r IndicatorRow) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"ts_code":     r.TsCode,
		"trade_date":  r.TradeDate,
		"ma5":         nanToNil(r.MA5),
		"ma10":        nanToNil(r.MA10),
		"ma20":        nanToNil(r.MA20),
		"ma30":        nanToNil(r.MA30),
		"ma60":        nanToNil(r.MA60),
		"ma120":       nanToNil(r.MA120),
		"ma200":       nanToNil(r.MA200),
		"ma250":       nanToNil(r.MA250),
		"ma500":       nanToNil(r.MA500),
		"macd":        nanToNil(r.MACD),
		"macd_signal": nanToNil(r.MACDSignal),
		"macd_hist":   nanToNil(r.MACDHist),
		"rsi":         nanToNil(r.RSI),
		"kdj_k":       nanToNil(r.KdjK),
		"kdj_d":       nanToNil(r.KdjD),
		"kdj_j":       nanToNil(r.KdjJ),
		"boll_upper":  nanToNil(r.BollUpper),
		"boll_middle": nanToNil(r.BollMiddle),
		"boll_lower":  nanToNil(r.BollLower),
	}
	return json.Marshal(m)
}

func nanToNil(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
