package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/logging"
	"golang.org/x/sync/errgroup"

	instrdomain "github.com/wyfcoding/riskengine/internal/instrument/domain"
	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// benchmarkSymbol 贝塔计算所用的市场基准
const benchmarkSymbol = "^NSEI"

// MarketData 风险计算对行情上下文的依赖
type MarketData interface {
	Resolve(ctx context.Context, symbol string) (instrdomain.Instrument, *instrdomain.History, error)
	History(ctx context.Context, symbol string) (*instrdomain.History, error)
	VIX(ctx context.Context) (float64, bool)
}

// RiskApplicationService 风险应用服务
// 处理组合 VaR、完整分析与批量模型库用例
type RiskApplicationService struct {
	market       MarketData
	reportRepo   domain.ReportRepository
	publisher    domain.EventPublisher
	riskFreeRate float64
}

// NewRiskApplicationService 创建风险应用服务
// reportRepo 与 publisher 允许为 nil（持久化与事件为尽力而为的旁路）
func NewRiskApplicationService(market MarketData, reportRepo domain.ReportRepository, publisher domain.EventPublisher, riskFreeRate float64) *RiskApplicationService {
	return &RiskApplicationService{
		market:       market,
		reportRepo:   reportRepo,
		publisher:    publisher,
		riskFreeRate: riskFreeRate,
	}
}

// resolvedHolding 一笔完成解析与取数的持仓
type resolvedHolding struct {
	request    HoldingRequest
	instrument instrdomain.Instrument
	prices     *domain.PriceSeries
	returns    *domain.ReturnSeries
}

// fetchHoldings 并发解析全部持仓并构建收益序列，任一失败即整体失败
func (s *RiskApplicationService) fetchHoldings(ctx context.Context, holdings []HoldingRequest) ([]resolvedHolding, error) {
	out := make([]resolvedHolding, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range holdings {
		g.Go(func() error {
			inst, history, err := s.market.Resolve(gctx, h.Symbol)
			if err != nil {
				return err
			}
			prices := toPriceSeries(inst.Symbol, history)
			returns, err := domain.NewReturnSeries(prices)
			if err != nil {
				return err
			}
			out[i] = resolvedHolding{request: h, instrument: inst, prices: prices, returns: returns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildPortfolio 用各标的最新价为持仓估值
func buildPortfolio(resolved []resolvedHolding) (*domain.Portfolio, error) {
	holdings := make([]domain.Holding, len(resolved))
	for i, r := range resolved {
		holdings[i] = domain.Holding{
			Symbol:   r.instrument.Symbol,
			Quantity: decimal.NewFromFloat(r.request.Quantity),
			Price:    decimal.NewFromFloat(r.prices.LastPrice()),
		}
	}
	return domain.NewPortfolio(holdings)
}

// ComputeSingleVaR 组合 VaR 用例：
// 1. 并发取数并构建对数收益
// 2. 交易日对齐与协方差分解
// 3. 四种方法分别计算 VaR
func (s *RiskApplicationService) ComputeSingleVaR(ctx context.Context, req *PortfolioRequest) (*PortfolioVaRDTO, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	resolved, err := s.fetchHoldings(ctx, req.Holdings)
	if err != nil {
		return nil, err
	}
	series := make([]*domain.ReturnSeries, len(resolved))
	for i, r := range resolved {
		series[i] = r.returns
	}
	aligned, err := domain.Align(series)
	if err != nil {
		return nil, err
	}

	portfolio, err := buildPortfolio(resolved)
	if err != nil {
		return nil, err
	}
	cov, err := domain.NewCovarianceMatrix(aligned)
	if err != nil {
		return nil, err
	}

	dto := s.computeVaRBreakdown(portfolio, aligned, cov, req, newRNG())
	logging.Info(ctx, "portfolio var computed",
		"symbols", strings.Join(aligned.Symbols, ","),
		"observations", aligned.Observations(),
		"total_value", dto.TotalValue,
	)
	return dto, nil
}

// computeVaRBreakdown 在已对齐数据上计算四种 VaR 与方向统计
func (s *RiskApplicationService) computeVaRBreakdown(portfolio *domain.Portfolio, aligned *domain.AlignedReturns, cov *domain.CovarianceMatrix, req *PortfolioRequest, rng *rand.Rand) *PortfolioVaRDTO {
	totalValue := portfolio.TotalValue.InexactFloat64()
	portfolioReturns := aligned.PortfolioReturns(portfolio.Weights)
	mu, _ := domain.SampleMoments(portfolioReturns)
	dailySigma := math.Sqrt(cov.PortfolioVariance(portfolio.Weights))

	direction := domain.NewDirectionalStats(portfolioReturns)

	return &PortfolioVaRDTO{
		TotalValue:     totalValue,
		ExpectedReturn: domain.AnnualizeReturn(mu),
		Volatility:     domain.AnnualizeVolatility(dailySigma),
		VaR: VaRBreakdown{
			VarianceCovariance: domain.ParametricVaR(totalValue, mu, dailySigma, req.Confidence, req.HorizonDays),
			Historical:         domain.HistoricalVaR(totalValue, portfolioReturns, req.Confidence, req.HorizonDays),
			MonteCarlo:         domain.MonteCarloVaR(portfolio.Values(), aligned, cov, req.Confidence, req.HorizonDays, req.Simulations, rng),
			ExpectedShortfall:  domain.ExpectedShortfall(totalValue, portfolioReturns, req.Confidence, req.HorizonDays),
		},
		ProbabilityUp:    direction.ProbUp,
		ProbabilityDown:  direction.ProbDown,
		ExpectedUpside:   direction.AvgUpReturn * totalValue,
		ExpectedDownside: direction.AvgDownLoss * totalValue,
		Confidence:       req.Confidence,
		HorizonDays:      req.HorizonDays,
		Simulations:      req.Simulations,
	}
}

// ComputeFullAnalysis 完整组合分析用例：
// 在 VaR 之上补充夏普比率、基准贝塔、构成明细、压力测试与 VIX 上下文，
// 结果持久化并发布事件（两者失败仅记日志）
func (s *RiskApplicationService) ComputeFullAnalysis(ctx context.Context, req *PortfolioRequest) (*PortfolioAnalysisDTO, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	resolved, err := s.fetchHoldings(ctx, req.Holdings)
	if err != nil {
		return nil, err
	}
	series := make([]*domain.ReturnSeries, len(resolved))
	for i, r := range resolved {
		series[i] = r.returns
	}
	aligned, err := domain.Align(series)
	if err != nil {
		return nil, err
	}
	portfolio, err := buildPortfolio(resolved)
	if err != nil {
		return nil, err
	}
	cov, err := domain.NewCovarianceMatrix(aligned)
	if err != nil {
		return nil, err
	}

	base := s.computeVaRBreakdown(portfolio, aligned, cov, req, newRNG())
	portfolioReturns := aligned.PortfolioReturns(portfolio.Weights)
	mu, _ := domain.SampleMoments(portfolioReturns)
	dailySigma := math.Sqrt(cov.PortfolioVariance(portfolio.Weights))

	analysis := &PortfolioAnalysisDTO{
		PortfolioVaRDTO: *base,
		SharpeRatio:     domain.SharpeRatio(mu, dailySigma, s.riskFreeRate),
		Beta:            s.computeBeta(ctx, aligned, portfolioReturns),
		Composition:     buildComposition(portfolio),
		StressTests:     portfolio.RunStressTests(),
	}
	if vix, ok := s.market.VIX(ctx); ok {
		analysis.VIX = &vix
	}

	s.persistAndPublish(ctx, req, analysis)
	return analysis, nil
}

// RecentReports 最近持久化的分析报告，按时间倒序；未配置仓储时返回空列表
func (s *RiskApplicationService) RecentReports(ctx context.Context, limit int) ([]*domain.RiskReport, error) {
	if s.reportRepo == nil {
		return []*domain.RiskReport{}, nil
	}
	return s.reportRepo.FindRecent(ctx, limit)
}

// computeBeta 对基准指数对齐后计算贝塔，基准不可得或样本不足时返回 nil
func (s *RiskApplicationService) computeBeta(ctx context.Context, aligned *domain.AlignedReturns, portfolioReturns []float64) *float64 {
	history, err := s.market.History(ctx, benchmarkSymbol)
	if err != nil {
		logging.Warn(ctx, "benchmark fetch failed, beta omitted", "benchmark", benchmarkSymbol, "error", err.Error())
		return nil
	}
	benchReturns, err := domain.NewReturnSeries(toPriceSeries(benchmarkSymbol, history))
	if err != nil {
		logging.Warn(ctx, "benchmark history insufficient, beta omitted", "benchmark", benchmarkSymbol, "error", err.Error())
		return nil
	}

	portfolioSeries := &domain.ReturnSeries{
		Symbol:  "PORTFOLIO",
		Dates:   aligned.Dates,
		Returns: portfolioReturns,
	}
	pair, err := domain.Align([]*domain.ReturnSeries{portfolioSeries, benchReturns})
	if err != nil {
		logging.Warn(ctx, "benchmark alignment failed, beta omitted", "benchmark", benchmarkSymbol, "error", err.Error())
		return nil
	}
	beta := domain.Beta(pair.Columns[0], pair.Columns[1])
	return &beta
}

// persistAndPublish 保存分析报告并发布事件，失败不影响请求结果
func (s *RiskApplicationService) persistAndPublish(ctx context.Context, req *PortfolioRequest, analysis *PortfolioAnalysisDTO) {
	if s.reportRepo == nil && s.publisher == nil {
		return
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		logging.Error(ctx, "failed to marshal analysis report", "error", err.Error())
		return
	}
	symbols := make([]string, len(analysis.Composition))
	for i, c := range analysis.Composition {
		symbols[i] = c.Symbol
	}
	report := &domain.RiskReport{
		Fingerprint: requestFingerprint(req),
		Symbols:     strings.Join(symbols, ","),
		TotalValue:  analysis.TotalValue,
		Confidence:  req.Confidence,
		HorizonDays: req.HorizonDays,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}

	if s.reportRepo != nil {
		if err := s.reportRepo.Save(ctx, report); err != nil {
			logging.Error(ctx, "failed to persist risk report", "fingerprint", report.Fingerprint, "error", err.Error())
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReportComputed(ctx, report); err != nil {
			logging.Error(ctx, "failed to publish report event", "fingerprint", report.Fingerprint, "error", err.Error())
		}
	}
}

// requestFingerprint 对持仓与参数做稳定摘要，持仓顺序不影响结果
func requestFingerprint(req *PortfolioRequest) string {
	parts := make([]string, len(req.Holdings))
	for i, h := range req.Holdings {
		parts[i] = fmt.Sprintf("%s:%v", strings.ToUpper(h.Symbol), h.Quantity)
	}
	sort.Strings(parts)
	raw := fmt.Sprintf("%s|c=%v|h=%d|m=%d", strings.Join(parts, ","), req.Confidence, req.HorizonDays, req.Simulations)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

func buildComposition(p *domain.Portfolio) []CompositionEntry {
	out := make([]CompositionEntry, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = CompositionEntry{
			Symbol:   h.Symbol,
			Quantity: h.Quantity.InexactFloat64(),
			Price:    h.Price.InexactFloat64(),
			Value:    h.MarketValue().InexactFloat64(),
			Weight:   p.Weights[i],
		}
	}
	return out
}

// toPriceSeries 将行情历史转换为领域价格序列
func toPriceSeries(symbol string, h *instrdomain.History) *domain.PriceSeries {
	ps := &domain.PriceSeries{
		Symbol: symbol,
		Dates:  make([]time.Time, len(h.Points)),
		Closes: make([]float64, len(h.Points)),
	}
	for i, p := range h.Points {
		ps.Dates[i] = p.Date
		ps.Closes[i] = p.Close
	}
	return ps
}

// newRNG 每次请求独立的随机数流
func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
