// Package client 实现对外部行情数据源的访问
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wyfcoding/riskengine/internal/instrument/domain"
)

// chartResponse Yahoo Finance v8 chart 接口的响应结构（仅保留所需字段）
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooClient 基于 Yahoo Finance chart 接口的行情数据源
type YahooClient struct {
	http    *resty.Client
	baseURL string
}

// NewYahooClient 构建客户端，内置超时与重试
func NewYahooClient(baseURL string, timeout time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (riskengine)")
	return &YahooClient{http: httpClient, baseURL: baseURL}
}

// FetchHistory 拉取自 start 以来的日线收盘序列
// 空结果或接口错误统一包装为 DataUnavailableError，由上层决定回退策略
func (c *YahooClient) FetchHistory(ctx context.Context, symbol string, start time.Time) (*domain.History, error) {
	var out chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":  fmt.Sprintf("%d", start.Unix()),
			"period2":  fmt.Sprintf("%d", time.Now().Unix()),
			"interval": "1d",
			"events":   "history",
		}).
		SetResult(&out).
		Get(c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, &domain.DataUnavailableError{Symbol: symbol, Err: err}
	}
	if resp.IsError() {
		return nil, &domain.DataUnavailableError{Symbol: symbol, Err: fmt.Errorf("http status %d", resp.StatusCode())}
	}
	if out.Chart.Error != nil {
		return nil, &domain.DataUnavailableError{Symbol: symbol, Err: fmt.Errorf("%s: %s", out.Chart.Error.Code, out.Chart.Error.Description)}
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &domain.DataUnavailableError{Symbol: symbol}
	}

	result := out.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// 停牌日收盘价为 null，跳过
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, domain.PricePoint{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closes[i],
		})
	}
	if len(points) == 0 {
		return nil, &domain.DataUnavailableError{Symbol: symbol}
	}

	return &domain.History{Symbol: symbol, Points: points}, nil
}
