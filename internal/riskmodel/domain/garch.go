package domain

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// VolModel 条件波动率递归形式
type VolModel string

const (
	VolGARCH  VolModel = "GARCH"
	VolEGARCH VolModel = "EGARCH"
	VolGJR    VolModel = "GJR-GARCH"
)

// GarchSpec GARCH 族模型变体：{波动率递归} × {创新分布} × {是否偏斜}
type GarchSpec struct {
	Vol    VolModel
	Dist   DistFamily
	Skewed bool
}

// ID 返回模型标识，如 GARCH-N、EGARCH-SKEWED-T、GJR-GARCH-GED
func (s GarchSpec) ID() string {
	suffix := map[DistFamily]string{DistNormal: "N", DistT: "T", DistGED: "GED"}[s.Dist]
	if s.Skewed {
		return string(s.Vol) + "-SKEWED-" + suffix
	}
	return string(s.Vol) + "-" + suffix
}

// AllGarchSpecs 固定的 18 个模型变体列表
// 批量编排器遍历该列表而非依赖运行时类型分发
func AllGarchSpecs() []GarchSpec {
	vols := []VolModel{VolGARCH, VolEGARCH, VolGJR}
	dists := []DistFamily{DistNormal, DistT, DistGED}
	specs := make([]GarchSpec, 0, 18)
	for _, v := range vols {
		for _, skewed := range []bool{false, true} {
			for _, d := range dists {
				specs = append(specs, GarchSpec{Vol: v, Dist: d, Skewed: skewed})
			}
		}
	}
	return specs
}

// GarchFit 一次极大似然拟合的结果
// 收益输入与参数均为百分比口径（对数收益 ×100，与业界数值稳定性惯例一致）
type GarchFit struct {
	Spec  GarchSpec
	Mu    float64 // 样本均值（% / 日）
	Omega float64
	Alpha float64
	Gamma float64 // 非对称项，GARCH(1,1) 恒为 0
	Beta  float64
	Shape float64 // t 的自由度或 GED 的尾厚参数，正态为 0
	Skew  float64 // 偏斜参数，未启用时为 0

	LogLikelihood float64
	Converged     bool
	CondVol       []float64 // 样本期条件波动率 σ_t（%）

	lastEps    float64
	lastSigma2 float64
	sampleVar  float64
	innov      Innovation
}

const (
	garchMaxIterations = 1200
	egarchAbsMoment    = 0.7978845608028654 // √(2/π)，标准化残差绝对值的期望
	infeasiblePenalty  = 1e12
)

// FitGarch 对百分比对数收益序列做极大似然拟合
// 违反平稳性或非负性约束的结果返回 ModelDivergenceError；
// 优化在迭代预算内未收敛时 Converged 置 false，结果仍返回供检视
func FitGarch(spec GarchSpec, symbol string, returns []float64) (*GarchFit, error) {
	if len(returns) < MinObservations {
		return nil, &InsufficientHistoryError{
			Symbol:       symbol,
			Observations: len(returns),
			Required:     MinObservations,
		}
	}

	mu := stat.Mean(returns, nil)
	sampleVar := stat.Variance(returns, nil)
	eps := make([]float64, len(returns))
	for i, r := range returns {
		eps[i] = r - mu
	}

	x0 := initialParams(spec, sampleVar)
	nll := func(x []float64) float64 {
		if !feasible(spec, x) {
			return infeasiblePenalty
		}
		innov, err := innovationFromParams(spec, x)
		if err != nil {
			return infeasiblePenalty
		}
		ll, _, _ := logLikelihood(spec, x, eps, sampleVar, innov)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return infeasiblePenalty
		}
		return -ll
	}

	problem := optimize.Problem{Func: nll}
	settings := &optimize.Settings{MajorIterations: garchMaxIterations}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})

	x := x0
	converged := false
	if result != nil {
		x = result.X
		converged = err == nil && result.Status == optimize.FunctionConvergence
	}
	if !feasible(spec, x) {
		return nil, &ModelDivergenceError{Model: spec.ID(), Reason: "fitted parameters violate stationarity or non-negativity constraints"}
	}

	innov, ierr := innovationFromParams(spec, x)
	if ierr != nil {
		return nil, &ModelDivergenceError{Model: spec.ID(), Reason: ierr.Error()}
	}
	ll, condVol, last := logLikelihood(spec, x, eps, sampleVar, innov)

	fit := &GarchFit{
		Spec:          spec,
		Mu:            mu,
		Omega:         x[0],
		Alpha:         x[1],
		Beta:          x[len(baseParams(spec))-1],
		LogLikelihood: ll,
		Converged:     converged,
		CondVol:       condVol,
		lastEps:       eps[len(eps)-1],
		lastSigma2:    last,
		sampleVar:     sampleVar,
		innov:         innov,
	}
	if spec.Vol != VolGARCH {
		fit.Gamma = x[2]
	}
	shapeIdx := len(baseParams(spec))
	if spec.Dist != DistNormal {
		fit.Shape = x[shapeIdx]
		shapeIdx++
	}
	if spec.Skewed {
		fit.Skew = x[shapeIdx]
	}
	return fit, nil
}

// baseParams 递归形式的基础参数初值（不含分布形状参数）
func baseParams(spec GarchSpec) []float64 {
	switch spec.Vol {
	case VolEGARCH:
		return []float64{0, 0.1, -0.05, 0.95}
	case VolGJR:
		return []float64{0, 0.05, 0.08, 0.86}
	default:
		return []float64{0, 0.08, 0.88}
	}
}

// initialParams 方差定标：令初始 ω 与样本无条件方差一致
func initialParams(spec GarchSpec, sampleVar float64) []float64 {
	x := baseParams(spec)
	switch spec.Vol {
	case VolEGARCH:
		x[0] = (1 - x[3]) * math.Log(sampleVar)
	case VolGJR:
		x[0] = sampleVar * (1 - x[1] - x[2]/2 - x[3])
	default:
		x[0] = sampleVar * (1 - x[1] - x[2])
	}
	if spec.Dist == DistT {
		x = append(x, 8)
	} else if spec.Dist == DistGED {
		x = append(x, 1.5)
	}
	if spec.Skewed {
		x = append(x, -0.1)
	}
	return x
}

// feasible 检查平稳性与非负性约束
func feasible(spec GarchSpec, x []float64) bool {
	nb := len(baseParams(spec))
	switch spec.Vol {
	case VolEGARCH:
		// EGARCH 对数方差形式无非负性要求，仅需 |β| < 1
		if math.Abs(x[3]) >= 0.999 {
			return false
		}
	case VolGJR:
		omega, alpha, gamma, beta := x[0], x[1], x[2], x[3]
		if omega <= 0 || alpha < 0 || beta < 0 || alpha+gamma < 0 {
			return false
		}
		if alpha+gamma/2+beta >= 0.999 {
			return false
		}
	default:
		omega, alpha, beta := x[0], x[1], x[2]
		if omega <= 0 || alpha < 0 || beta < 0 {
			return false
		}
		if alpha+beta >= 0.999 {
			return false
		}
	}
	i := nb
	if spec.Dist == DistT {
		if x[i] <= 2.05 || x[i] > 200 {
			return false
		}
		i++
	} else if spec.Dist == DistGED {
		if x[i] <= 0.3 || x[i] > 50 {
			return false
		}
		i++
	}
	if spec.Skewed {
		if x[i] <= -0.95 || x[i] >= 0.95 {
			return false
		}
	}
	return true
}

func innovationFromParams(spec GarchSpec, x []float64) (Innovation, error) {
	i := len(baseParams(spec))
	shape, skew := 0.0, 0.0
	if spec.Dist != DistNormal {
		shape = x[i]
		i++
	}
	if spec.Skewed {
		skew = x[i]
	}
	return NewInnovation(spec.Dist, shape, skew, spec.Skewed)
}

// logLikelihood 执行波动率递归并累计对数似然
// σ²_0 以样本无条件方差初始化；返回 (似然, σ_t 路径, σ²_T)
func logLikelihood(spec GarchSpec, x []float64, eps []float64, sampleVar float64, innov Innovation) (float64, []float64, float64) {
	n := len(eps)
	condVol := make([]float64, n)
	sigma2 := sampleVar
	ll := 0.0

	for t := 0; t < n; t++ {
		if t > 0 {
			sigma2 = nextVariance(spec, x, eps[t-1], sigma2)
		}
		if sigma2 <= 1e-12 || math.IsNaN(sigma2) {
			return math.Inf(-1), condVol, sigma2
		}
		sigma := math.Sqrt(sigma2)
		condVol[t] = sigma
		ll += innov.LogProb(eps[t]/sigma) - math.Log(sigma)
	}
	return ll, condVol, sigma2
}

// nextVariance 单步条件方差递归
func nextVariance(spec GarchSpec, x []float64, epsPrev, sigma2Prev float64) float64 {
	switch spec.Vol {
	case VolEGARCH:
		omega, alpha, gamma, beta := x[0], x[1], x[2], x[3]
		z := epsPrev / math.Sqrt(sigma2Prev)
		lnS2 := omega + beta*math.Log(sigma2Prev) + alpha*(math.Abs(z)-egarchAbsMoment) + gamma*z
		return math.Exp(lnS2)
	case VolGJR:
		omega, alpha, gamma, beta := x[0], x[1], x[2], x[3]
		indicator := 0.0
		if epsPrev < 0 {
			indicator = 1
		}
		return omega + (alpha+gamma*indicator)*epsPrev*epsPrev + beta*sigma2Prev
	default:
		omega, alpha, beta := x[0], x[1], x[2]
		return omega + alpha*epsPrev*epsPrev + beta*sigma2Prev
	}
}

func (f *GarchFit) params() []float64 {
	switch f.Spec.Vol {
	case VolGARCH:
		return []float64{f.Omega, f.Alpha, f.Beta}
	default:
		return []float64{f.Omega, f.Alpha, f.Gamma, f.Beta}
	}
}

const egarchForecastPaths = 1000

// ForecastVariance 预测未来 h 步的条件方差期望序列（%² 口径）
// GARCH 与 GJR 采用解析多步递推，EGARCH 无闭式解，用路径模拟求期望
func (f *GarchFit) ForecastVariance(h int, rng *rand.Rand) []float64 {
	out := make([]float64, h)
	switch f.Spec.Vol {
	case VolEGARCH:
		for p := 0; p < egarchForecastPaths; p++ {
			sigma2 := f.lastSigma2
			epsPrev := f.lastEps
			for k := 0; k < h; k++ {
				sigma2 = nextVariance(f.Spec, f.params(), epsPrev, sigma2)
				out[k] += sigma2
				epsPrev = math.Sqrt(sigma2) * f.innov.Rand(rng)
			}
		}
		for k := range out {
			out[k] /= egarchForecastPaths
		}
	case VolGJR:
		// 双侧缩放偏斜保持 P(z<0)=0.5，E[I·ε²] = σ²/2 依然成立
		persistence := f.Alpha + f.Gamma/2 + f.Beta
		uncond := f.Omega / (1 - persistence)
		next := nextVariance(f.Spec, f.params(), f.lastEps, f.lastSigma2)
		for k := 0; k < h; k++ {
			out[k] = uncond + math.Pow(persistence, float64(k))*(next-uncond)
		}
	default:
		persistence := f.Alpha + f.Beta
		uncond := f.Omega / (1 - persistence)
		next := nextVariance(f.Spec, f.params(), f.lastEps, f.lastSigma2)
		for k := 0; k < h; k++ {
			out[k] = uncond + math.Pow(persistence, float64(k))*(next-uncond)
		}
	}
	return out
}

// HorizonSigma 聚合 h 步预测方差得到期内波动率（小数口径）
func (f *GarchFit) HorizonSigma(h int, rng *rand.Rand) float64 {
	total := 0.0
	for _, v := range f.ForecastVariance(h, rng) {
		total += v
	}
	return math.Sqrt(total) / 100
}

// VaR 按拟合分布的分位数计算期内 VaR（带符号收益额，亏损为负）
// VaR = Value × (μ·h + q_{1-c}(dist) × σ_h)
func (f *GarchFit) VaR(value float64, confidence float64, h int, rng *rand.Rand) float64 {
	sigmaH := f.HorizonSigma(h, rng)
	q := f.innov.Quantile(1 - confidence)
	return value * (f.Mu/100*float64(h) + q*sigmaH)
}

// SimulateTerminalPrices 用拟合后的递归与创新分布模拟 m 条 h 步价格路径的终值
func (f *GarchFit) SimulateTerminalPrices(lastPrice float64, h, m int, rng *rand.Rand) []float64 {
	finals := make([]float64, m)
	for p := 0; p < m; p++ {
		sigma2 := f.lastSigma2
		epsPrev := f.lastEps
		logPrice := 0.0
		for k := 0; k < h; k++ {
			sigma2 = nextVariance(f.Spec, f.params(), epsPrev, sigma2)
			sigma := math.Sqrt(sigma2)
			z := f.innov.Rand(rng)
			r := f.Mu + sigma*z // 百分比日收益
			logPrice += r / 100
			epsPrev = sigma * z
		}
		finals[p] = lastPrice * math.Exp(logPrice)
	}
	return finals
}

// AnnualizedVolForecast 一步向前条件波动率的年化值（小数口径）
func (f *GarchFit) AnnualizedVolForecast() float64 {
	next := nextVariance(f.Spec, f.params(), f.lastEps, f.lastSigma2)
	return AnnualizeVolatility(math.Sqrt(next) / 100)
}
