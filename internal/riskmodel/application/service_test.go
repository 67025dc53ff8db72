package application

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	instrdomain "github.com/wyfcoding/riskengine/internal/instrument/domain"
	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// fakeMarket 确定性的行情桩：每个符号一条带噪声的几何增长价格序列
// flat 置位时所有价格恒定，用于零方差场景
type fakeMarket struct {
	observations int
	vix          float64
	flat         bool
}

func (f *fakeMarket) history(symbol string) *instrdomain.History {
	// 以符号派生种子，序列稳定且互不相同
	var seed uint64
	for _, c := range symbol {
		seed = seed*131 + uint64(c)
	}
	rng := rand.New(rand.NewPCG(seed, 7))

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100 + float64(seed%1000)
	h := &instrdomain.History{Symbol: symbol}
	for i := 0; i < f.observations; i++ {
		h.Points = append(h.Points, instrdomain.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Close: price,
		})
		if !f.flat {
			price *= math.Exp(0.0003 + 0.012*rng.NormFloat64())
		}
	}
	return h
}

func (f *fakeMarket) Resolve(_ context.Context, symbol string) (instrdomain.Instrument, *instrdomain.History, error) {
	if strings.HasPrefix(symbol, "BAD") {
		return instrdomain.Instrument{}, nil, &instrdomain.ResolutionError{Symbol: symbol}
	}
	inst := instrdomain.Instrument{Input: symbol, Symbol: symbol, Kind: instrdomain.KindEquity}
	return inst, f.history(symbol), nil
}

func (f *fakeMarket) History(_ context.Context, symbol string) (*instrdomain.History, error) {
	return f.history(symbol), nil
}

func (f *fakeMarket) VIX(context.Context) (float64, bool) {
	return f.vix, f.vix > 0
}

// recordingRepo 记录保存调用的报告仓储桩
type recordingRepo struct {
	mu      sync.Mutex
	reports []*domain.RiskReport
}

func (r *recordingRepo) Save(_ context.Context, report *domain.RiskReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingRepo) FindRecent(context.Context, int) ([]*domain.RiskReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports, nil
}

func newTestService(market MarketData, repo domain.ReportRepository) *RiskApplicationService {
	return NewRiskApplicationService(market, repo, nil, 0)
}

func TestPortfolioRequestNormalize(t *testing.T) {
	req := &PortfolioRequest{Holdings: []HoldingRequest{{Symbol: "TCS", Quantity: 10}}}
	require.NoError(t, req.Normalize())
	assert.Equal(t, DefaultConfidence, req.Confidence)
	assert.Equal(t, DefaultHorizonDays, req.HorizonDays)
	assert.Equal(t, DefaultSimulations, req.Simulations)

	bad := &PortfolioRequest{
		Holdings:   []HoldingRequest{{Symbol: "TCS", Quantity: 10}},
		Confidence: 0.5,
	}
	assert.Error(t, bad.Normalize())

	bad = &PortfolioRequest{
		Holdings:    []HoldingRequest{{Symbol: "TCS", Quantity: 10}},
		Simulations: 500,
	}
	assert.Error(t, bad.Normalize())

	bad = &PortfolioRequest{Holdings: nil}
	assert.Error(t, bad.Normalize())

	bad = &PortfolioRequest{Holdings: []HoldingRequest{{Symbol: "TCS", Quantity: -1}}}
	assert.Error(t, bad.Normalize())
}

func TestSimulationRequestNormalize(t *testing.T) {
	req := &SimulationRequest{Symbol: "TCS"}
	require.NoError(t, req.Normalize())
	assert.Equal(t, DefaultConfidence, req.Confidence)

	bad := &SimulationRequest{Symbol: "TCS", Model: "NOT-A-MODEL"}
	assert.Error(t, bad.Normalize())

	bad = &SimulationRequest{}
	assert.Error(t, bad.Normalize())
}

func TestComputeSingleVaR(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 300}, nil)

	dto, err := svc.ComputeSingleVaR(context.Background(), &PortfolioRequest{
		Holdings: []HoldingRequest{
			{Symbol: "TCS.NS", Quantity: 10},
			{Symbol: "INFY.NS", Quantity: 25},
		},
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 5000,
	})
	require.NoError(t, err)

	assert.Greater(t, dto.TotalValue, 0.0)
	assert.Greater(t, dto.Volatility, 0.0)
	assert.Less(t, dto.VaR.VarianceCovariance, 0.0)
	assert.Less(t, dto.VaR.Historical, 0.0)
	assert.Less(t, dto.VaR.MonteCarlo, 0.0)
	assert.Less(t, dto.VaR.ExpectedShortfall, 0.0)
	// 条件 VaR 的亏损幅度不小于历史 VaR
	assert.LessOrEqual(t, dto.VaR.ExpectedShortfall, dto.VaR.Historical)
	assert.InDelta(t, 1.0, dto.ProbabilityUp+dto.ProbabilityDown, 1e-9)
	assert.Greater(t, dto.ExpectedUpside, 0.0)
	assert.Less(t, dto.ExpectedDownside, 0.0)
}

func TestComputeSingleVaRFailFast(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 300}, nil)

	_, err := svc.ComputeSingleVaR(context.Background(), &PortfolioRequest{
		Holdings: []HoldingRequest{
			{Symbol: "TCS.NS", Quantity: 10},
			{Symbol: "BAD.NS", Quantity: 5},
		},
	})
	var resolution *instrdomain.ResolutionError
	require.ErrorAs(t, err, &resolution)
}

func TestComputeSingleVaRInsufficientHistory(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 40}, nil)

	_, err := svc.ComputeSingleVaR(context.Background(), &PortfolioRequest{
		Holdings: []HoldingRequest{{Symbol: "TCS.NS", Quantity: 10}},
	})
	var insufficient *domain.InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
}

func TestComputeFullAnalysis(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(&fakeMarket{observations: 300, vix: 14.5}, repo)

	dto, err := svc.ComputeFullAnalysis(context.Background(), &PortfolioRequest{
		Holdings: []HoldingRequest{
			{Symbol: "TCS.NS", Quantity: 10},
			{Symbol: "INFY.NS", Quantity: 25},
		},
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 2000,
	})
	require.NoError(t, err)

	require.NotNil(t, dto.SharpeRatio)
	require.NotNil(t, dto.Beta)
	require.NotNil(t, dto.VIX)
	assert.InDelta(t, 14.5, *dto.VIX, 1e-12)
	// 无风险利率取零时夏普即年化收益除以年化波动率
	assert.InDelta(t, dto.ExpectedReturn/dto.Volatility, *dto.SharpeRatio, 1e-9)

	require.Len(t, dto.Composition, 2)
	weightSum := 0.0
	for _, c := range dto.Composition {
		weightSum += c.Weight
		assert.InDelta(t, c.Quantity*c.Price, c.Value, 1e-6)
	}
	assert.InDelta(t, 1.0, weightSum, 1e-6)

	require.Len(t, dto.StressTests, 4)

	// 分析结果已持久化
	require.Len(t, repo.reports, 1)
	assert.NotEmpty(t, repo.reports[0].Fingerprint)
	assert.NotEmpty(t, repo.reports[0].Payload)
}

func TestFullAnalysisZeroVariancePortfolio(t *testing.T) {
	// 恒定价格：波动率为 0，夏普比率报告为 null 而非除零
	svc := newTestService(&fakeMarket{observations: 300, flat: true}, nil)

	dto, err := svc.ComputeFullAnalysis(context.Background(), &PortfolioRequest{
		Holdings: []HoldingRequest{
			{Symbol: "TCS.NS", Quantity: 10},
			{Symbol: "INFY.NS", Quantity: 5},
		},
		Confidence:  0.95,
		HorizonDays: 5,
		Simulations: 1000,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, dto.Volatility)
	assert.Nil(t, dto.SharpeRatio)
	assert.InDelta(t, 0.0, dto.VaR.VarianceCovariance, 1e-9)
	assert.InDelta(t, 0.0, dto.VaR.Historical, 1e-9)
	assert.InDelta(t, 0.0, dto.VaR.MonteCarlo, 1e-9)
}

func TestRecentReports(t *testing.T) {
	repo := &recordingRepo{reports: []*domain.RiskReport{{Fingerprint: "abc"}}}
	svc := newTestService(&fakeMarket{observations: 300}, repo)

	got, err := svc.RecentReports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].Fingerprint)

	// 未配置仓储时返回空列表而非错误
	none := newTestService(&fakeMarket{observations: 300}, nil)
	got, err = none.RecentReports(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRequestFingerprintOrderIndependent(t *testing.T) {
	a := &PortfolioRequest{
		Holdings:    []HoldingRequest{{Symbol: "TCS", Quantity: 1}, {Symbol: "INFY", Quantity: 2}},
		Confidence:  0.99,
		HorizonDays: 10,
		Simulations: 1000,
	}
	b := &PortfolioRequest{
		Holdings:    []HoldingRequest{{Symbol: "INFY", Quantity: 2}, {Symbol: "TCS", Quantity: 1}},
		Confidence:  0.99,
		HorizonDays: 10,
		Simulations: 1000,
	}
	assert.Equal(t, requestFingerprint(a), requestFingerprint(b))

	c := &PortfolioRequest{
		Holdings:    []HoldingRequest{{Symbol: "TCS", Quantity: 1}, {Symbol: "INFY", Quantity: 2}},
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 1000,
	}
	assert.NotEqual(t, requestFingerprint(a), requestFingerprint(c))
}
