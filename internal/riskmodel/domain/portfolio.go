package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 组合持仓数量边界
const (
	MinHoldings = 1
	MaxHoldings = 50
)

// Holding 组合中的一笔持仓，数量与单价用 decimal 保存避免资金精度损失
type Holding struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal // 当前市价
}

// MarketValue 持仓市值 = 数量 × 单价
func (h Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.Price)
}

// Portfolio 估值后的组合：持仓、总市值与权重
// 权重在构建时一次算定，之和恒为 1
type Portfolio struct {
	Holdings   []Holding
	TotalValue decimal.Decimal
	Weights    []float64 // 与 Holdings 顺序一致
}

// NewPortfolio 聚合持仓并计算市值权重
// 总市值为零或持仓数量越界时返回错误
func NewPortfolio(holdings []Holding) (*Portfolio, error) {
	if len(holdings) < MinHoldings || len(holdings) > MaxHoldings {
		return nil, fmt.Errorf("portfolio must hold between %d and %d instruments, got %d", MinHoldings, MaxHoldings, len(holdings))
	}

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.MarketValue())
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("portfolio total value must be positive, got %s", total)
	}

	weights := make([]float64, len(holdings))
	for i, h := range holdings {
		weights[i] = h.MarketValue().Div(total).InexactFloat64()
	}

	return &Portfolio{Holdings: holdings, TotalValue: total, Weights: weights}, nil
}

// Symbols 按持仓顺序返回标的代码
func (p *Portfolio) Symbols() []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Symbol
	}
	return out
}

// Values 按持仓顺序返回各持仓市值（float64 口径，供统计计算）
func (p *Portfolio) Values() []float64 {
	out := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.MarketValue().InexactFloat64()
	}
	return out
}

// StressScenario 压力情景：对全部持仓施加统一价格冲击
type StressScenario struct {
	Name  string  `json:"name"`
	Shock float64 `json:"shock"` // 价格冲击比例，-0.30 表示下跌 30%
}

// StressResult 单一情景下的组合冲击结果
type StressResult struct {
	Scenario       StressScenario `json:"scenario"`
	StressedValue  float64        `json:"stressed_value"`
	ProfitAndLoss  float64        `json:"pnl"`
	PercentageLoss float64        `json:"pct_change"`
}

// StandardStressScenarios 固定的四档均匀冲击情景
func StandardStressScenarios() []StressScenario {
	return []StressScenario{
		{Name: "crash_30", Shock: -0.30},
		{Name: "crash_20", Shock: -0.20},
		{Name: "boom_20", Shock: 0.20},
		{Name: "boom_30", Shock: 0.30},
	}
}

// RunStressTests 对组合逐一施加标准情景
// 均匀冲击下组合损益与总市值成正比，逐情景单调
func (p *Portfolio) RunStressTests() []StressResult {
	total := p.TotalValue.InexactFloat64()
	scenarios := StandardStressScenarios()
	out := make([]StressResult, len(scenarios))
	for i, sc := range scenarios {
		stressed := total * (1 + sc.Shock)
		out[i] = StressResult{
			Scenario:       sc,
			StressedValue:  stressed,
			ProfitAndLoss:  stressed - total,
			PercentageLoss: sc.Shock * 100,
		}
	}
	return out
}

// DirectionalStats 组合收益的方向统计
type DirectionalStats struct {
	ProbUp       float64 `json:"prob_up"`       // 日收益为正的历史频率
	ProbDown     float64 `json:"prob_down"`     // 日收益为负的历史频率
	AvgUpReturn  float64 `json:"avg_up_return"` // 上涨日的平均收益
	AvgDownLoss  float64 `json:"avg_down_loss"` // 下跌日的平均收益（负值）
	UpDays       int     `json:"up_days"`
	DownDays     int     `json:"down_days"`
	Observations int     `json:"observations"`
}

// NewDirectionalStats 从组合日收益序列统计方向性指标
// ProbUp 取收益严格为正的占比，ProbDown 为其补集（零收益日计入下行侧）；
// 平均上行/下行收益只在严格为正/为负的样本上计算
func NewDirectionalStats(returns []float64) DirectionalStats {
	s := DirectionalStats{Observations: len(returns)}
	upSum, downSum := 0.0, 0.0
	for _, r := range returns {
		if r > 0 {
			s.UpDays++
			upSum += r
		} else if r < 0 {
			s.DownDays++
			downSum += r
		}
	}
	if s.Observations > 0 {
		s.ProbUp = float64(s.UpDays) / float64(s.Observations)
		s.ProbDown = 1 - s.ProbUp
	}
	if s.UpDays > 0 {
		s.AvgUpReturn = upSum / float64(s.UpDays)
	}
	if s.DownDays > 0 {
		s.AvgDownLoss = downSum / float64(s.DownDays)
	}
	return s
}

// SharpeRatio 年化夏普比率 (μ_a - rf) / σ_a
// 波动率为零时无定义，返回 nil
func SharpeRatio(dailyMean, dailySigma, riskFreeRate float64) *float64 {
	if dailySigma == 0 {
		return nil
	}
	sharpe := (AnnualizeReturn(dailyMean) - riskFreeRate) / AnnualizeVolatility(dailySigma)
	return &sharpe
}
