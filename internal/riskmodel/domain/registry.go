package domain

import (
	"math"
	"math/rand/v2"
	"time"
)

// SimulationResult 模型库单个成员的完整输出
// 失败的成员不产出结果，由编排层以错误记录
type SimulationResult struct {
	Model         string    `json:"model"`
	Symbol        string    `json:"symbol"`
	LastPrice     float64   `json:"last_price"`
	VaR           float64   `json:"var"`            // 单位持仓的终端损益分位数，亏损为负
	AnnualizedVol float64   `json:"annualized_vol"` // 年化波动率预测，经典模型取样本口径
	Stats         SimStats  `json:"stats"`
	Converged     bool      `json:"converged"`
	LogLikelihood *float64  `json:"log_likelihood,omitempty"` // 仅 GARCH 族成员有值
	Horizon       int       `json:"horizon_days"`
	Simulations   int       `json:"simulations"`
	ComputedAt    time.Time `json:"computed_at"`
}

// classicBankModels 模型库中的四个经典成员，与 GARCH 族合计 22 个
var classicBankModels = []string{
	ModelBankHistorical,
	ModelBankMonteCarlo,
	ModelBankRiskMetrics,
	ModelBankSimpleVar,
}

// AllModelIDs 返回模型库全部成员标识：18 个 GARCH 变体加 4 个经典模型
func AllModelIDs() []string {
	specs := AllGarchSpecs()
	out := make([]string, 0, len(specs)+len(classicBankModels))
	for _, s := range specs {
		out = append(out, s.ID())
	}
	out = append(out, classicBankModels...)
	return out
}

// IsKnownModel 判断标识是否属于模型库
func IsKnownModel(id string) bool {
	for _, known := range AllModelIDs() {
		if known == id {
			return true
		}
	}
	return false
}

// RunClassicModel 执行单个经典模型并汇总统计
// 未知标识返回 ModelDivergenceError 以外的普通错误由调用方包装
func RunClassicModel(model string, prices *PriceSeries, rs *ReturnSeries, confidence float64, horizon, simulations int, rng *rand.Rand) (*SimulationResult, error) {
	last := prices.LastPrice()

	var finals []float64
	var annVol float64
	switch model {
	case ModelBankHistorical:
		finals = SimulateHistoricalBootstrap(prices, horizon, simulations, rng)
		_, sigma := SampleMoments(rs.Returns)
		annVol = AnnualizeVolatility(sigma)
	case ModelBankMonteCarlo:
		finals = SimulateGBM(rs, last, horizon, simulations, rng)
		_, sigma := SampleMoments(rs.Returns)
		annVol = AnnualizeVolatility(sigma)
	case ModelBankRiskMetrics:
		finals = SimulateRiskMetrics(rs, last, horizon, simulations, rng)
		annVol = AnnualizeVolatility(math.Sqrt(EWMAVariance(rs.Returns)))
	case ModelBankSimpleVar:
		finals = SimulateSimpleVariance(rs, last, horizon, simulations, rng)
		_, sigma := SampleMoments(rs.Returns)
		annVol = AnnualizeVolatility(sigma)
	default:
		return nil, &ModelDivergenceError{Model: model, Reason: "unknown model id"}
	}

	return &SimulationResult{
		Model:         model,
		Symbol:        prices.Symbol,
		LastPrice:     last,
		VaR:           TerminalVaR(finals, last, confidence),
		AnnualizedVol: annVol,
		Stats:         NewSimStats(finals),
		Converged:     true,
		Horizon:       horizon,
		Simulations:   simulations,
		ComputedAt:    time.Now().UTC(),
	}, nil
}

// PercentReturns 将对数收益放大 100 倍，GARCH 拟合在百分比口径上数值更稳定
func PercentReturns(rs *ReturnSeries) []float64 {
	out := make([]float64, len(rs.Returns))
	for i, r := range rs.Returns {
		out[i] = r * 100
	}
	return out
}

// RunGarchModel 拟合单个 GARCH 变体并模拟终端价格
// 收益以百分比口径参与拟合，价格模拟在原始口径还原
func RunGarchModel(spec GarchSpec, prices *PriceSeries, rs *ReturnSeries, confidence float64, horizon, simulations int, rng *rand.Rand) (*SimulationResult, error) {
	fit, err := FitGarch(spec, prices.Symbol, PercentReturns(rs))
	if err != nil {
		return nil, err
	}

	last := prices.LastPrice()
	finals := fit.SimulateTerminalPrices(last, horizon, simulations, rng)
	ll := fit.LogLikelihood

	return &SimulationResult{
		Model:         spec.ID(),
		Symbol:        prices.Symbol,
		LastPrice:     last,
		VaR:           TerminalVaR(finals, last, confidence),
		AnnualizedVol: fit.AnnualizedVolForecast(),
		Stats:         NewSimStats(finals),
		Converged:     fit.Converged,
		LogLikelihood: &ll,
		Horizon:       horizon,
		Simulations:   simulations,
		ComputedAt:    time.Now().UTC(),
	}, nil
}
