package domain

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const choleskyJitterAttempts = 6

// CovarianceMatrix 对齐收益上的样本协方差矩阵及其 Cholesky 因子
// 在一次组合计算期间由协方差引擎持有，构建后只读
type CovarianceMatrix struct {
	Symbols []string
	cov     *mat.SymDense
	lower   [][]float64 // Cholesky 下三角因子 L，L·Lᵗ = Cov
}

// NewCovarianceMatrix 从对齐收益构建协方差矩阵并分解
// 数值上非半正定时先做对角抖动修正（ε·I，ε 按尝试次数指数放大），
// 仍失败则返回 NonPositiveSemidefiniteError
func NewCovarianceMatrix(aligned *AlignedReturns) (*CovarianceMatrix, error) {
	n := len(aligned.Symbols)
	obs := aligned.Observations()

	data := mat.NewDense(obs, n, nil)
	for j, col := range aligned.Columns {
		for i, r := range col {
			data.Set(i, j, r)
		}
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)

	// 对角抖动的基准量级取平均方差
	trace := 0.0
	for i := 0; i < n; i++ {
		trace += cov.At(i, i)
	}

	// 全零矩阵（如恒定价格序列）是半正定的，其 Cholesky 因子为零矩阵，
	// 直接构造以免把零方差场景误报为退化
	if trace == 0 {
		lower := make([][]float64, n)
		for i := 0; i < n; i++ {
			lower[i] = make([]float64, i+1)
		}
		return &CovarianceMatrix{Symbols: aligned.Symbols, cov: cov, lower: lower}, nil
	}
	baseEps := 1e-12 * trace / float64(n)

	var chol mat.Cholesky
	attempt := 0
	work := mat.NewSymDense(n, nil)
	work.CopySym(cov)
	for {
		if chol.Factorize(work) {
			break
		}
		attempt++
		if attempt > choleskyJitterAttempts {
			return nil, &NonPositiveSemidefiniteError{Attempts: choleskyJitterAttempts}
		}
		eps := baseEps * math.Pow(10, float64(attempt))
		work.CopySym(cov)
		for i := 0; i < n; i++ {
			work.SetSym(i, i, cov.At(i, i)+eps)
		}
	}

	var tri mat.TriDense
	chol.LTo(&tri)
	lower := make([][]float64, n)
	for i := 0; i < n; i++ {
		lower[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			lower[i][j] = tri.At(i, j)
		}
	}

	return &CovarianceMatrix{Symbols: aligned.Symbols, cov: cov, lower: lower}, nil
}

// Dim 矩阵阶数
func (c *CovarianceMatrix) Dim() int { return len(c.Symbols) }

// At 协方差矩阵元素
func (c *CovarianceMatrix) At(i, j int) float64 { return c.cov.At(i, j) }

// LowerAt Cholesky 因子 L 的元素（j > i 时为 0）
func (c *CovarianceMatrix) LowerAt(i, j int) float64 {
	if j > i {
		return 0
	}
	return c.lower[i][j]
}

// Correlation 相关系数 ρ(i,j) = Cov(i,j) / (σ_i·σ_j)
func (c *CovarianceMatrix) Correlation(i, j int) float64 {
	denom := math.Sqrt(c.cov.At(i, i) * c.cov.At(j, j))
	if denom == 0 {
		if i == j {
			return 1
		}
		return 0
	}
	return c.cov.At(i, j) / denom
}

// PortfolioVariance wᵗ·Cov·w（逐日口径）
func (c *CovarianceMatrix) PortfolioVariance(weights []float64) float64 {
	n := c.Dim()
	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += weights[i] * c.cov.At(i, j) * weights[j]
		}
	}
	// 数值误差可能产生极小负值
	return math.Max(total, 0)
}

// CorrelatedShocks 以独立标准正态抽样乘 Cholesky 因子生成相关冲击，写入 dst
// z 为长度等于维度的工作切片，调用方复用以避免分配
func (c *CovarianceMatrix) CorrelatedShocks(rng *rand.Rand, z, dst []float64) {
	n := c.Dim()
	for i := 0; i < n; i++ {
		z[i] = rng.NormFloat64()
	}
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j <= i; j++ {
			sum += c.lower[i][j] * z[j]
		}
		dst[i] = sum
	}
}

// Beta 组合收益对基准收益的敏感度 Cov(p, b) / Var(b)
// 两个序列须已在同一日期索引上对齐
func Beta(portfolio, benchmark []float64) float64 {
	v := stat.Variance(benchmark, nil)
	if v == 0 {
		return 0
	}
	return stat.Covariance(portfolio, benchmark, nil) / v
}
