package domain

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// DistFamily 创新分布族
type DistFamily string

const (
	DistNormal DistFamily = "normal"
	DistT      DistFamily = "t"
	DistGED    DistFamily = "ged"
)

// Innovation 标准化残差的创新分布
// 实现均为零均值、（偏斜前）单位方差的标准化形式
type Innovation interface {
	// Quantile 返回水平 p 处的分位数
	Quantile(p float64) float64
	// LogProb 返回 x 处的对数密度
	LogProb(x float64) float64
	// Rand 从分布中抽取一个样本
	Rand(rng *rand.Rand) float64
}

// NewInnovation 按分布族与形状参数构造创新分布
// shape 对 t 为自由度 ν，对 ged 为尾厚参数 ν；偏斜分布在基础分布上叠加 skew 参数
func NewInnovation(family DistFamily, shape, skew float64, skewed bool) (Innovation, error) {
	var base Innovation
	switch family {
	case DistNormal:
		base = normalInnovation{}
	case DistT:
		if shape <= 2 {
			return nil, fmt.Errorf("student-t degrees of freedom must exceed 2, got %v", shape)
		}
		base = studentTInnovation{nu: shape}
	case DistGED:
		if shape <= 0 {
			return nil, fmt.Errorf("ged shape must be positive, got %v", shape)
		}
		base = newGEDInnovation(shape)
	default:
		return nil, fmt.Errorf("unknown innovation family %q", family)
	}
	if !skewed {
		return base, nil
	}
	if skew <= -1 || skew >= 1 {
		return nil, fmt.Errorf("skew parameter must lie in (-1, 1), got %v", skew)
	}
	return skewedInnovation{base: base, xi: skew}, nil
}

// normalInnovation 标准正态分布
type normalInnovation struct{}

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

func (normalInnovation) Quantile(p float64) float64 { return stdNormal.Quantile(p) }
func (normalInnovation) LogProb(x float64) float64  { return stdNormal.LogProb(x) }
func (normalInnovation) Rand(rng *rand.Rand) float64 {
	return rng.NormFloat64()
}

// studentTInnovation 标准化 Student-t：X = T·√((ν-2)/ν)，方差归一为 1
type studentTInnovation struct {
	nu float64
}

func (d studentTInnovation) scale() float64 { return math.Sqrt((d.nu - 2) / d.nu) }

func (d studentTInnovation) Quantile(p float64) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: d.nu}
	return d.scale() * t.Quantile(p)
}

func (d studentTInnovation) LogProb(x float64) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: d.nu}
	k := d.scale()
	return t.LogProb(x/k) - math.Log(k)
}

func (d studentTInnovation) Rand(rng *rand.Rand) float64 {
	return d.Quantile(uniformOpen(rng))
}

// gedInnovation 广义误差分布（GED），λ 取单位方差标定
// f(x) = ν · exp(-0.5·|x/λ|^ν) / (λ · 2^(1+1/ν) · Γ(1/ν))
type gedInnovation struct {
	nu     float64
	lambda float64
	logC   float64 // 归一化常数的对数
}

func newGEDInnovation(nu float64) gedInnovation {
	lg1, _ := math.Lgamma(1 / nu)
	lg3, _ := math.Lgamma(3 / nu)
	lambda := math.Sqrt(math.Exp(lg1-lg3) / math.Pow(2, 2/nu))
	logC := math.Log(nu) - math.Log(lambda) - (1+1/nu)*math.Ln2 - lg1
	return gedInnovation{nu: nu, lambda: lambda, logC: logC}
}

func (d gedInnovation) LogProb(x float64) float64 {
	return d.logC - 0.5*math.Pow(math.Abs(x/d.lambda), d.nu)
}

func (d gedInnovation) Quantile(p float64) float64 {
	// |X/λ|^ν / 2 服从 Gamma(1/ν, 1)，分位数经正则化不完全伽马反函数求得
	if p == 0.5 {
		return 0
	}
	sign := 1.0
	q := 2*p - 1
	if p < 0.5 {
		sign = -1
		q = 1 - 2*p
	}
	g := mathext.GammaIncRegInv(1/d.nu, q)
	return sign * d.lambda * math.Pow(2*g, 1/d.nu)
}

func (d gedInnovation) Rand(rng *rand.Rand) float64 {
	return d.Quantile(uniformOpen(rng))
}

// skewedInnovation 双侧缩放偏斜：z ≥ 0 一侧按 (1+ξ) 缩放，z < 0 一侧按 (1-ξ) 缩放
// ξ < 0 时左尾加厚（负向冲击更极端），P(X ≤ 0) 恒为 0.5
type skewedInnovation struct {
	base Innovation
	xi   float64
}

func (d skewedInnovation) Quantile(p float64) float64 {
	q := d.base.Quantile(p)
	if q >= 0 {
		return q * (1 + d.xi)
	}
	return q * (1 - d.xi)
}

func (d skewedInnovation) LogProb(x float64) float64 {
	if x >= 0 {
		s := 1 + d.xi
		return d.base.LogProb(x/s) - math.Log(s)
	}
	s := 1 - d.xi
	return d.base.LogProb(x/s) - math.Log(s)
}

func (d skewedInnovation) Rand(rng *rand.Rand) float64 {
	z := d.base.Rand(rng)
	if z >= 0 {
		return z * (1 + d.xi)
	}
	return z * (1 - d.xi)
}

// uniformOpen 返回 (0,1) 开区间上的均匀样本，避免分位数函数在端点发散
func uniformOpen(rng *rand.Rand) float64 {
	for {
		u := rng.Float64()
		if u > 0 && u < 1 {
			return u
		}
	}
}
