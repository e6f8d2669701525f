package contracts

import (
	"fmt"
	"time"
)

// Bar is one daily OHLCV bar for a listed symbol.
// TradeDate uses the upstream 8-digit form (YYYYMMDD) so that lexicographic
// order equals chronological order and the partition year is a prefix.
type Bar struct {
	TsCode    string  `parquet:"ts_code" json:"ts_code"`
	TradeDate string  `parquet:"trade_date" json:"trade_date"`
	Open      float64 `parquet:"open" json:"open"`
	High      float64 `parquet:"high" json:"high"`
	Low       float64 `parquet:"low" json:"low"`
	Close     float64 `parquet:"close" json:"close"`
	Vol       float64 `parquet:"vol" json:"vol"`
	Amount    float64 `parquet:"amount" json:"amount"`
}

// Key returns the (symbol, trade date) primary key.
func (b Bar) Key() (string, string) {
	return b.TsCode, b.TradeDate
}

// Validate checks the bar invariants. A violating bar rejects its whole
// ingest batch.
func (b Bar) Validate() error {
	if b.TsCode == "" || b.TradeDate == "" {
		return fmt.Errorf("%w: bar missing ts_code or trade_date", ErrValidation)
	}
	if len(b.TradeDate) != 8 {
		return fmt.Errorf("%w: bad trade_date %q for %s", ErrValidation, b.TradeDate, b.TsCode)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: high %.4f < low %.4f for %s %s",
			ErrValidation, b.High, b.Low, b.TsCode, b.TradeDate)
	}
	return nil
}

// AdjFactor is a price adjustment factor row. Append-only: an existing
// (symbol, trade date) key is never overwritten.
type AdjFactor struct {
	TsCode    string  `parquet:"ts_code" json:"ts_code"`
	TradeDate string  `parquet:"trade_date" json:"trade_date"`
	AdjFactor float64 `parquet:"adj_factor" json:"adj_factor"`
}

// Key returns the (symbol, trade date) primary key.
func (a AdjFactor) Key() (string, string) {
	return a.TsCode, a.TradeDate
}

// PriceLimit holds the exchange up/down price limits for one trading day.
// A zero limit means "no limit recorded".
type PriceLimit struct {
	TsCode    string  `parquet:"ts_code" json:"ts_code"`
	TradeDate string  `parquet:"trade_date" json:"trade_date"`
	UpLimit   float64 `parquet:"up_limit" json:"up_limit"`
	DownLimit float64 `parquet:"down_limit" json:"down_limit"`
}

// Key returns the (symbol, trade date) primary key.
func (l PriceLimit) Key() (string, string) {
	return l.TsCode, l.TradeDate
}

// SymbolInfo is one row of the symbol metadata catalog. The catalog is
// replaced wholesale on every sync, never merged.
type SymbolInfo struct {
	TsCode   string `json:"ts_code"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Area     string `json:"area"`
	Industry string `json:"industry"`
	Market   string `json:"market"`
	ListDate string `json:"list_date"`
}

// TradeDateYear extracts the partition year from an 8-digit trade date.
func TradeDateYear(tradeDate string) string {
	if len(tradeDate) < 4 {
		return tradeDate
	}
	return tradeDate[:4]
}

// ParseTradeDate converts an 8-digit trade date to a time.Time (UTC midnight).
func ParseTradeDate(tradeDate string) (time.Time, error) {
	t, err := time.Parse("20060102", tradeDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse trade_date %q: %w", tradeDate, err)
	}
	return t, nil
}

// FormatTradeDate converts a time.Time to the 8-digit trade date form.
func FormatTradeDate(t time.Time) string {
	return t.Format("20060102")
}
