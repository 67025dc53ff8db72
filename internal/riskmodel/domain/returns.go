// Package domain 包含风险引擎的核心领域模型：
// 收益序列构建、风险模型库、协方差引擎与组合聚合
package domain

import (
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinObservations 对齐后历史样本的最小数量，低于该值拒绝计算
	MinObservations = 100
	// TradingDaysPerYear 年化所用的交易日数量
	TradingDaysPerYear = 252
)

// PriceSeries 单个标的的日线收盘价序列
// 日期严格递增、无重复，由构建方保证；构建后不可变
type PriceSeries struct {
	Symbol string
	Dates  []time.Time
	Closes []float64
}

// LastPrice 返回序列中最新一日的收盘价
func (s *PriceSeries) LastPrice() float64 {
	if len(s.Closes) == 0 {
		return 0
	}
	return s.Closes[len(s.Closes)-1]
}

// ReturnSeries 单个标的的日对数收益序列
type ReturnSeries struct {
	Symbol  string
	Dates   []time.Time // 每个收益对应的交易日（价格序列首日无收益，被丢弃）
	Returns []float64
}

// NewReturnSeries 从价格序列构建对数收益 r_t = ln(P_t / P_{t-1})
// 样本数低于 MinObservations 时返回 InsufficientHistoryError
func NewReturnSeries(prices *PriceSeries) (*ReturnSeries, error) {
	n := len(prices.Closes)
	if n-1 < MinObservations {
		return nil, &InsufficientHistoryError{
			Symbol:       prices.Symbol,
			Observations: max(n-1, 0),
			Required:     MinObservations,
		}
	}

	dates := make([]time.Time, 0, n-1)
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		dates = append(dates, prices.Dates[i])
		returns = append(returns, math.Log(prices.Closes[i]/prices.Closes[i-1]))
	}

	return &ReturnSeries{Symbol: prices.Symbol, Dates: dates, Returns: returns}, nil
}

// AlignedReturns 多个标的在公共交易日索引上的收益矩阵
// 所有列共享同一日期索引，构建后只读，可在并发模型拟合间共享
type AlignedReturns struct {
	Symbols []string
	Dates   []time.Time
	// Columns[i] 与 Symbols[i] 对应，长度等于 len(Dates)
	Columns [][]float64
}

// Align 对多个收益序列求交易日交集并重建矩阵
// 交集样本数低于 MinObservations 时返回 InsufficientHistoryError
func Align(series []*ReturnSeries) (*AlignedReturns, error) {
	if len(series) == 0 {
		return &AlignedReturns{}, nil
	}

	// 以第一条序列为基准，逐条求日期交集
	common := make(map[int64]struct{}, len(series[0].Dates))
	for _, d := range series[0].Dates {
		common[dayKey(d)] = struct{}{}
	}
	for _, s := range series[1:] {
		next := make(map[int64]struct{}, len(s.Dates))
		for _, d := range s.Dates {
			k := dayKey(d)
			if _, ok := common[k]; ok {
				next[k] = struct{}{}
			}
		}
		common = next
	}

	keys := make([]int64, 0, len(common))
	for k := range common {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if len(keys) < MinObservations {
		return nil, &InsufficientHistoryError{
			Symbol:       series[0].Symbol,
			Observations: len(keys),
			Required:     MinObservations,
		}
	}

	aligned := &AlignedReturns{
		Symbols: make([]string, len(series)),
		Dates:   make([]time.Time, len(keys)),
		Columns: make([][]float64, len(series)),
	}
	for i, k := range keys {
		aligned.Dates[i] = time.Unix(k, 0).UTC()
	}
	for i, s := range series {
		byDay := make(map[int64]float64, len(s.Dates))
		for j, d := range s.Dates {
			byDay[dayKey(d)] = s.Returns[j]
		}
		col := make([]float64, len(keys))
		for j, k := range keys {
			col[j] = byDay[k]
		}
		aligned.Symbols[i] = s.Symbol
		aligned.Columns[i] = col
	}

	return aligned, nil
}

// Observations 返回公共日期索引的长度
func (a *AlignedReturns) Observations() int { return len(a.Dates) }

// PortfolioReturns 按权重加权合成组合收益序列
// weights 与 Symbols 顺序一致
func (a *AlignedReturns) PortfolioReturns(weights []float64) []float64 {
	out := make([]float64, a.Observations())
	for i, col := range a.Columns {
		w := weights[i]
		for j, r := range col {
			out[j] += w * r
		}
	}
	return out
}

// SampleMoments 样本均值与标准差（逐日口径）
func SampleMoments(returns []float64) (mu, sigma float64) {
	mu = stat.Mean(returns, nil)
	sigma = math.Sqrt(stat.Variance(returns, nil))
	return mu, sigma
}

// AnnualizeReturn 将逐日均值收益年化（×252）
func AnnualizeReturn(dailyMean float64) float64 {
	return dailyMean * TradingDaysPerYear
}

// AnnualizeVolatility 将逐日波动率年化（×√252）
func AnnualizeVolatility(dailySigma float64) float64 {
	return dailySigma * math.Sqrt(TradingDaysPerYear)
}

// dayKey 将时间归一化到 UTC 日粒度，作为交集键
func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
