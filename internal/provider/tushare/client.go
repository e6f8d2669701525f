// Package tushare wraps the TuShare Pro HTTP API. Every call shares one
// rate limiter sized to the account's per-minute quota.
package tushare

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/minqi/freedom/internal/contracts"
	"github.com/minqi/freedom/pkg/config"
	"github.com/minqi/freedom/pkg/httputil"
	"github.com/minqi/freedom/pkg/logger"
)

// Client is a TuShare Pro API client.
type Client struct {
	http    *httputil.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a client from config. The token is checked lazily
// on first use so read-only deployments can run without one.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	perMin := cfg.Tushare.RatePerMin
	if perMin <= 0 {
		perMin = 120
	}
	return &Client{
		http:    httputil.New(log),
		baseURL: cfg.Tushare.BaseURL,
		token:   cfg.Tushare.Token,
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		log:     log,
	}
}

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// call posts one API request and flattens the columnar response into
// field-keyed records.
func (c *Client) call(ctx context.Context, apiName string, params map[string]string, fields string) ([]map[string]any, error) {
	if c.token == "" {
		return nil, fmt.Errorf("tushare token is required: %w", contracts.ErrUpstream)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := apiRequest{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  fields,
	}

	var resp apiResponse
	if err := c.http.PostJSON(ctx, c.baseURL, req, &resp); err != nil {
		return nil, fmt.Errorf("tushare %s: %w: %v", apiName, contracts.ErrUpstream, err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("tushare %s: code=%d msg=%s: %w", apiName, resp.Code, resp.Msg, contracts.ErrUpstream)
	}

	records := make([]map[string]any, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		record := make(map[string]any, len(resp.Data.Fields))
		for i, field := range resp.Data.Fields {
			if i < len(item) {
				record[field] = item[i]
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// FetchStockBasic returns the listed-symbol catalog. An empty response
// is an upstream failure, not a valid catalog.
func (c *Client) FetchStockBasic(ctx context.Context) ([]contracts.SymbolInfo, error) {
	records, err := c.call(ctx, "stock_basic",
		map[string]string{"list_status": "L"},
		"ts_code,symbol,name,area,industry,market,list_date")
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tushare stock_basic returned no rows: %w", contracts.ErrUpstream)
	}

	rows := make([]contracts.SymbolInfo, 0, len(records))
	for _, rec := range records {
		rows = append(rows, contracts.SymbolInfo{
			TsCode:   stringField(rec, "ts_code"),
			Symbol:   stringField(rec, "symbol"),
			Name:     stringField(rec, "name"),
			Area:     stringField(rec, "area"),
			Industry: stringField(rec, "industry"),
			Market:   stringField(rec, "market"),
			ListDate: stringField(rec, "list_date"),
		})
	}
	return rows, nil
}

// FetchDaily returns raw daily bars for one symbol and date range. An
// empty result is normal for suspended symbols or quiet ranges.
func (c *Client) FetchDaily(ctx context.Context, tsCode, startDate, endDate string) ([]contracts.Bar, error) {
	records, err := c.call(ctx, "daily",
		rangeParams(tsCode, startDate, endDate),
		"ts_code,trade_date,open,high,low,close,vol,amount")
	if err != nil {
		return nil, err
	}

	bars := make([]contracts.Bar, 0, len(records))
	for _, rec := range records {
		bars = append(bars, contracts.Bar{
			TsCode:    stringField(rec, "ts_code"),
			TradeDate: stringField(rec, "trade_date"),
			Open:      floatField(rec, "open"),
			High:      floatField(rec, "high"),
			Low:       floatField(rec, "low"),
			Close:     floatField(rec, "close"),
			Vol:       floatField(rec, "vol"),
			Amount:    floatField(rec, "amount"),
		})
	}
	return bars, nil
}

// FetchAdjFactors returns price adjustment factors for one symbol.
func (c *Client) FetchAdjFactors(ctx context.Context, tsCode, startDate, endDate string) ([]contracts.AdjFactor, error) {
	records, err := c.call(ctx, "adj_factor",
		rangeParams(tsCode, startDate, endDate),
		"ts_code,trade_date,adj_factor")
	if err != nil {
		return nil, err
	}

	rows := make([]contracts.AdjFactor, 0, len(records))
	for _, rec := range records {
		rows = append(rows, contracts.AdjFactor{
			TsCode:    stringField(rec, "ts_code"),
			TradeDate: stringField(rec, "trade_date"),
			AdjFactor: floatField(rec, "adj_factor"),
		})
	}
	return rows, nil
}

// FetchLimits returns the daily up/down price limits for one symbol.
func (c *Client) FetchLimits(ctx context.Context, tsCode, startDate, endDate string) ([]contracts.PriceLimit, error) {
	records, err := c.call(ctx, "stk_limit",
		rangeParams(tsCode, startDate, endDate),
		"ts_code,trade_date,up_limit,down_limit")
	if err != nil {
		return nil, err
	}

	rows := make([]contracts.PriceLimit, 0, len(records))
	for _, rec := range records {
		rows = append(rows, contracts.PriceLimit{
			TsCode:    stringField(rec, "ts_code"),
			TradeDate: stringField(rec, "trade_date"),
			UpLimit:   floatField(rec, "up_limit"),
			DownLimit: floatField(rec, "down_limit"),
		})
	}
	return rows, nil
}

func rangeParams(tsCode, startDate, endDate string) map[string]string {
	params := map[string]string{"ts_code": tsCode}
	if startDate != "" {
		params["start_date"] = startDate
	}
	if endDate != "" {
		params["end_date"] = endDate
	}
	return params
}

func stringField(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func floatField(rec map[string]any, key string) float64 {
	if v, ok := rec[key].(float64); ok {
		return v
	}
	return 0
}
