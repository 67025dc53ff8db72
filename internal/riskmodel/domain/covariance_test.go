package domain

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

// randomAligned 生成带相关性的双标的收益矩阵
func randomAligned(n int, rho float64, rng *rand.Rand) *AlignedReturns {
	dates := make([]time.Time, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		dates[i] = day(i)
		z1 := rng.NormFloat64()
		z2 := rho*z1 + math.Sqrt(1-rho*rho)*rng.NormFloat64()
		a[i] = 0.01 * z1
		b[i] = 0.015 * z2
	}
	return &AlignedReturns{Symbols: []string{"A", "B"}, Dates: dates, Columns: [][]float64{a, b}}
}

func TestCovarianceMatrixBasics(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 3))
	aligned := randomAligned(500, 0.6, rng)

	cov, err := NewCovarianceMatrix(aligned)
	require.NoError(t, err)
	require.Equal(t, 2, cov.Dim())

	// 对称且对角线等于各列样本方差
	assert.InDelta(t, cov.At(0, 1), cov.At(1, 0), 1e-15)
	assert.InDelta(t, stat.Variance(aligned.Columns[0], nil), cov.At(0, 0), 1e-12)
	assert.InDelta(t, stat.Variance(aligned.Columns[1], nil), cov.At(1, 1), 1e-12)

	// 相关系数接近构造值
	assert.InDelta(t, 0.6, cov.Correlation(0, 1), 0.1)
	assert.InDelta(t, 1.0, cov.Correlation(0, 0), 1e-12)
}

func TestCholeskyReconstructsCovariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 5))
	aligned := randomAligned(400, 0.3, rng)

	cov, err := NewCovarianceMatrix(aligned)
	require.NoError(t, err)

	n := cov.Dim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			recon := 0.0
			for k := 0; k < n; k++ {
				recon += cov.LowerAt(i, k) * cov.LowerAt(j, k)
			}
			assert.InDelta(t, cov.At(i, j), recon, 1e-12, "L·Lᵗ mismatch at (%d,%d)", i, j)
		}
	}
}

func TestPortfolioVariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(6, 7))
	aligned := randomAligned(400, 0.5, rng)

	cov, err := NewCovarianceMatrix(aligned)
	require.NoError(t, err)

	w := []float64{0.4, 0.6}
	want := w[0]*w[0]*cov.At(0, 0) + 2*w[0]*w[1]*cov.At(0, 1) + w[1]*w[1]*cov.At(1, 1)
	assert.InDelta(t, want, cov.PortfolioVariance(w), 1e-15)
	assert.GreaterOrEqual(t, cov.PortfolioVariance(w), 0.0)
}

func TestCorrelatedShocksCovariance(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	aligned := randomAligned(600, 0.7, rng)

	cov, err := NewCovarianceMatrix(aligned)
	require.NoError(t, err)

	const m = 100000
	z := make([]float64, 2)
	shock := make([]float64, 2)
	var sum01, sum0, sum1 float64
	for i := 0; i < m; i++ {
		cov.CorrelatedShocks(rng, z, shock)
		sum01 += shock[0] * shock[1]
		sum0 += shock[0] * shock[0]
		sum1 += shock[1] * shock[1]
	}
	assert.InDelta(t, cov.At(0, 1), sum01/m, math.Abs(cov.At(0, 1))*0.1)
	assert.InDelta(t, cov.At(0, 0), sum0/m, cov.At(0, 0)*0.05)
	assert.InDelta(t, cov.At(1, 1), sum1/m, cov.At(1, 1)*0.05)
}

func TestZeroVarianceCovariance(t *testing.T) {
	// 恒定价格序列：协方差全零，Cholesky 因子为零矩阵而非报错
	n := 200
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = day(i)
	}
	aligned := &AlignedReturns{
		Symbols: []string{"A", "B"},
		Dates:   dates,
		Columns: [][]float64{make([]float64, n), make([]float64, n)},
	}

	cov, err := NewCovarianceMatrix(aligned)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cov.PortfolioVariance([]float64{0.5, 0.5}))
	assert.Equal(t, 0.0, cov.LowerAt(1, 0))
	assert.InDelta(t, 1.0, cov.Correlation(0, 0), 1e-12)
	assert.Equal(t, 0.0, cov.Correlation(0, 1))
}

func TestBeta(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 11))
	bench := make([]float64, 500)
	asset := make([]float64, 500)
	for i := range bench {
		bench[i] = 0.01 * rng.NormFloat64()
		asset[i] = 1.5*bench[i] + 0.002*rng.NormFloat64()
	}

	assert.InDelta(t, 1.0, Beta(bench, bench), 1e-12)
	assert.InDelta(t, 1.5, Beta(asset, bench), 0.1)
	assert.Equal(t, 0.0, Beta(asset, make([]float64, 500)))
}
