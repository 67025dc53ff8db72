package domain

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

// 模型库中经典成员的标识（与 GARCH 族共同构成完整模型库）
const (
	ModelBankHistorical  = "HISTORICAL"
	ModelBankMonteCarlo  = "MONTE-CARLO"
	ModelBankRiskMetrics = "RISK-METRICS"
	ModelBankSimpleVar   = "SIMPLE-VARIANCE"
)

// riskMetricsAlpha RiskMetrics EWMA 衰减 α = 1 - λ，λ = 0.94
const riskMetricsAlpha = 0.06

// Quantile 带线性插值的经验分位数（样本排序在函数内完成）
func Quantile(samples []float64, p float64) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	slices.Sort(sorted)
	return quantileSorted(sorted, p)
}

// quantileSorted 在已排序样本的次序统计量之间线性插值
func quantileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ParametricVaR 方差-协方差法：VaR = Value × (μ + z_{1-c}·σ) × √h
// 依赖正态性假设，μ、σ 为组合收益的逐日样本矩；亏损为负值
func ParametricVaR(value, mu, sigma, confidence float64, horizon int) float64 {
	z := stdNormal.Quantile(1 - confidence)
	return value * (mu + z*sigma) * math.Sqrt(float64(horizon))
}

// HistoricalVaR 历史模拟法：经验分布 (1-c) 分位数（次序统计量间线性插值）
func HistoricalVaR(value float64, returns []float64, confidence float64, horizon int) float64 {
	q := Quantile(returns, 1-confidence)
	return value * q * math.Sqrt(float64(horizon))
}

// ExpectedShortfall 条件 VaR：历史收益中不高于 VaR 阈值部分的均值
// 亏损幅度恒不小于同置信度的 VaR
func ExpectedShortfall(value float64, returns []float64, confidence float64, horizon int) float64 {
	threshold := Quantile(returns, 1-confidence)
	sum, count := 0.0, 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return value * threshold * math.Sqrt(float64(horizon))
	}
	return value * (sum / float64(count)) * math.Sqrt(float64(horizon))
}

// MonteCarloVaR 多资产相关蒙特卡洛：
// 各资产按 GBM 模拟 h 日终值，相关性经 Cholesky 因子注入；
// 对 iid 正态日冲击，h 日累计冲击与 √h 缩放的单次抽样同分布，故按终端分布直接抽样。
// 返回模拟终端组合价值相对初值的 (1-c) 分位损益
func MonteCarloVaR(values []float64, aligned *AlignedReturns, cov *CovarianceMatrix, confidence float64, horizon, simulations int, rng *rand.Rand) float64 {
	n := len(values)
	initial := 0.0
	for _, v := range values {
		initial += v
	}

	mus := make([]float64, n)
	vars := make([]float64, n)
	for i, col := range aligned.Columns {
		mu, sigma := SampleMoments(col)
		mus[i] = mu
		vars[i] = sigma * sigma
	}

	h := float64(horizon)
	sqrtH := math.Sqrt(h)
	z := make([]float64, n)
	shock := make([]float64, n)
	pnls := make([]float64, simulations)
	for s := 0; s < simulations; s++ {
		cov.CorrelatedShocks(rng, z, shock)
		terminal := 0.0
		for i := 0; i < n; i++ {
			drift := (mus[i] - 0.5*vars[i]) * h
			terminal += values[i] * math.Exp(drift+sqrtH*shock[i])
		}
		pnls[s] = terminal - initial
	}

	return Quantile(pnls, 1-confidence)
}

// SimStats 单标的模拟终值统计，模型库各成员共用
type SimStats struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	PMin float64 `json:"p_min"` // 终值落在最低价 5% 邻域内的占比
	PMax float64 `json:"p_max"` // 终值落在最高价 5% 邻域内的占比
}

// NewSimStats 从模拟终值样本计算统计量
func NewSimStats(finalPrices []float64) SimStats {
	n := len(finalPrices)
	if n == 0 {
		return SimStats{}
	}
	sum, minP, maxP := 0.0, finalPrices[0], finalPrices[0]
	for _, p := range finalPrices {
		sum += p
		minP = math.Min(minP, p)
		maxP = math.Max(maxP, p)
	}
	nearMin, nearMax := 0, 0
	for _, p := range finalPrices {
		if p <= minP*1.05 {
			nearMin++
		}
		if p >= maxP*0.95 {
			nearMax++
		}
	}
	return SimStats{
		Mean: sum / float64(n),
		Min:  minP,
		Max:  maxP,
		PMin: float64(nearMin) / float64(n),
		PMax: float64(nearMax) / float64(n),
	}
}

// TerminalVaR 单位持仓的终端损益 (1-c) 分位数
func TerminalVaR(finalPrices []float64, lastPrice, confidence float64) float64 {
	pnls := make([]float64, len(finalPrices))
	for i, p := range finalPrices {
		pnls[i] = p - lastPrice
	}
	return Quantile(pnls, 1-confidence)
}

// SimulateGBM 经典几何布朗运动模拟：μ、σ 取历史对数收益的样本矩
func SimulateGBM(rs *ReturnSeries, lastPrice float64, horizon, simulations int, rng *rand.Rand) []float64 {
	mu, sigma := SampleMoments(rs.Returns)
	return simulateConstVol(mu-0.5*sigma*sigma, sigma, lastPrice, horizon, simulations, rng)
}

// SimulateSimpleVariance 无 -σ²/2 漂移修正的朴素方差模拟
func SimulateSimpleVariance(rs *ReturnSeries, lastPrice float64, horizon, simulations int, rng *rand.Rand) []float64 {
	mu, sigma := SampleMoments(rs.Returns)
	return simulateConstVol(mu, sigma, lastPrice, horizon, simulations, rng)
}

// SimulateRiskMetrics EWMA 条件方差（λ=0.94）驱动的模拟
func SimulateRiskMetrics(rs *ReturnSeries, lastPrice float64, horizon, simulations int, rng *rand.Rand) []float64 {
	mu, _ := SampleMoments(rs.Returns)
	ewma := 0.0
	for i, r := range rs.Returns {
		if i == 0 {
			ewma = r * r
			continue
		}
		ewma = riskMetricsAlpha*r*r + (1-riskMetricsAlpha)*ewma
	}
	sigma := math.Sqrt(ewma)
	return simulateConstVol(mu-0.5*sigma*sigma, sigma, lastPrice, horizon, simulations, rng)
}

// EWMAVariance RiskMetrics 口径的末期 EWMA 方差，供测试与诊断使用
func EWMAVariance(returns []float64) float64 {
	ewma := 0.0
	for i, r := range returns {
		if i == 0 {
			ewma = r * r
			continue
		}
		ewma = riskMetricsAlpha*r*r + (1-riskMetricsAlpha)*ewma
	}
	return ewma
}

// simulateConstVol 常量波动率下的对数价格路径终值
// 日冲击 iid，h 日累计等价于一次 √h 缩放抽样
func simulateConstVol(drift, sigma, lastPrice float64, horizon, simulations int, rng *rand.Rand) []float64 {
	h := float64(horizon)
	sqrtH := math.Sqrt(h)
	finals := make([]float64, simulations)
	for s := 0; s < simulations; s++ {
		finals[s] = lastPrice * math.Exp(drift*h+sigma*sqrtH*rng.NormFloat64())
	}
	return finals
}

// SimulateHistoricalBootstrap 历史自助法：对简单收益有放回重抽样拼接 h 日路径
func SimulateHistoricalBootstrap(prices *PriceSeries, horizon, simulations int, rng *rand.Rand) []float64 {
	n := len(prices.Closes)
	simple := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		simple = append(simple, prices.Closes[i]/prices.Closes[i-1]-1)
	}
	sort.Float64s(simple)

	last := prices.LastPrice()
	finals := make([]float64, simulations)
	for s := 0; s < simulations; s++ {
		price := last
		for k := 0; k < horizon; k++ {
			price *= 1 + simple[rng.IntN(len(simple))]
		}
		finals[s] = price
	}
	return finals
}
