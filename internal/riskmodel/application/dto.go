// 包 风险引擎的用例逻辑、DTO 与批量模型编排
package application

import (
	"fmt"

	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// 请求参数边界与默认值
const (
	DefaultConfidence  = 0.995
	MinConfidence      = 0.90
	MaxConfidence      = 0.999
	DefaultHorizonDays = 252
	MinHorizonDays     = 1
	MaxHorizonDays     = 252
	DefaultSimulations = 10000
	MinSimulations     = 1000
	MaxSimulations     = 100000
)

// ValidationError 请求参数缺失或越界，边界层据此映射为 400
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// HoldingRequest 单笔持仓请求项
type HoldingRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// PortfolioRequest 组合计算请求 DTO
type PortfolioRequest struct {
	Holdings    []HoldingRequest `json:"holdings" binding:"required"`
	Confidence  float64          `json:"confidence_level"`
	HorizonDays int              `json:"time_horizon"`
	Simulations int              `json:"num_simulations"`
}

// Normalize 填充默认值并校验参数边界
// 核心计算层假定参数已合法，校验只发生在这里
func (r *PortfolioRequest) Normalize() error {
	if r.Confidence == 0 {
		r.Confidence = DefaultConfidence
	}
	if r.HorizonDays == 0 {
		r.HorizonDays = DefaultHorizonDays
	}
	if r.Simulations == 0 {
		r.Simulations = DefaultSimulations
	}
	if len(r.Holdings) < domain.MinHoldings || len(r.Holdings) > domain.MaxHoldings {
		return validationErrorf("holdings count must be between %d and %d, got %d", domain.MinHoldings, domain.MaxHoldings, len(r.Holdings))
	}
	for _, h := range r.Holdings {
		if h.Symbol == "" {
			return validationErrorf("holding symbol must not be empty")
		}
		if h.Quantity <= 0 {
			return validationErrorf("holding quantity must be positive, got %v for %q", h.Quantity, h.Symbol)
		}
	}
	return validateModelParams(r.Confidence, r.HorizonDays, r.Simulations)
}

// SimulationRequest 单标的模型库请求 DTO
type SimulationRequest struct {
	Symbol      string
	Model       string // 为空表示运行全部 22 个模型
	Confidence  float64
	HorizonDays int
	Simulations int
}

// Normalize 填充默认值并校验参数边界
func (r *SimulationRequest) Normalize() error {
	if r.Symbol == "" {
		return validationErrorf("symbol must not be empty")
	}
	if r.Confidence == 0 {
		r.Confidence = DefaultConfidence
	}
	if r.HorizonDays == 0 {
		r.HorizonDays = DefaultHorizonDays
	}
	if r.Simulations == 0 {
		r.Simulations = DefaultSimulations
	}
	if r.Model != "" && !domain.IsKnownModel(r.Model) {
		return validationErrorf("unknown model %q", r.Model)
	}
	return validateModelParams(r.Confidence, r.HorizonDays, r.Simulations)
}

func validateModelParams(confidence float64, horizon, simulations int) error {
	if confidence < MinConfidence || confidence > MaxConfidence {
		return validationErrorf("confidence_level must be in [%v, %v], got %v", MinConfidence, MaxConfidence, confidence)
	}
	if horizon < MinHorizonDays || horizon > MaxHorizonDays {
		return validationErrorf("time_horizon must be in [%d, %d], got %d", MinHorizonDays, MaxHorizonDays, horizon)
	}
	if simulations < MinSimulations || simulations > MaxSimulations {
		return validationErrorf("num_simulations must be in [%d, %d], got %d", MinSimulations, MaxSimulations, simulations)
	}
	return nil
}

// VaRBreakdown 四种方法的组合 VaR（带符号损益，亏损为负）
type VaRBreakdown struct {
	VarianceCovariance float64 `json:"variance_covariance"`
	Historical         float64 `json:"historical"`
	MonteCarlo         float64 `json:"monte_carlo"`
	ExpectedShortfall  float64 `json:"expected_shortfall"`
}

// PortfolioVaRDTO compute_single_var 的响应 DTO
type PortfolioVaRDTO struct {
	TotalValue       float64      `json:"total_value"`
	ExpectedReturn   float64      `json:"expected_return"`
	Volatility       float64      `json:"volatility"`
	VaR              VaRBreakdown `json:"var"`
	ProbabilityUp    float64      `json:"probability_up"`
	ProbabilityDown  float64      `json:"probability_down"`
	ExpectedUpside   float64      `json:"expected_upside"`
	ExpectedDownside float64      `json:"expected_downside"`
	Confidence       float64      `json:"confidence_level"`
	HorizonDays      int          `json:"time_horizon"`
	Simulations      int          `json:"num_simulations"`
}

// CompositionEntry 组合构成明细
type CompositionEntry struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Weight   float64 `json:"weight"`
}

// PortfolioAnalysisDTO compute_full_analysis 的响应 DTO
// Sharpe 在波动率为零时无定义，Beta 在基准不可得时缺省，均以指针表达可空
type PortfolioAnalysisDTO struct {
	PortfolioVaRDTO
	SharpeRatio *float64              `json:"sharpe_ratio"`
	Beta        *float64              `json:"beta"`
	VIX         *float64              `json:"vix,omitempty"`
	Composition []CompositionEntry    `json:"composition"`
	StressTests []domain.StressResult `json:"stress_tests"`
}

// ModelBankDTO run_model_bank 的响应 DTO
type ModelBankDTO struct {
	Symbol      string                              `json:"symbol"`
	LastPrice   float64                             `json:"last_price"`
	Confidence  float64                             `json:"confidence_level"`
	HorizonDays int                                 `json:"time_horizon"`
	Simulations int                                 `json:"num_simulations"`
	Results     map[string]*domain.SimulationResult `json:"results"`
	Failures    map[string]string                   `json:"failures,omitempty"`
}
