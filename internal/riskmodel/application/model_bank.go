package application

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/wyfcoding/pkg/logging"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// RunModelBank 批量模型库用例：
// 取数与收益构建只做一次，22 个模型共享只读数据并发拟合；
// 单个模型失败或 panic 只记入该模型的失败项，不影响其余模型
func (s *RiskApplicationService) RunModelBank(ctx context.Context, req *SimulationRequest) (*ModelBankDTO, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	prices, returns, err := s.fetchInstrument(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	dto := &ModelBankDTO{
		Symbol:      prices.Symbol,
		LastPrice:   prices.LastPrice(),
		Confidence:  req.Confidence,
		HorizonDays: req.HorizonDays,
		Simulations: req.Simulations,
		Results:     make(map[string]*domain.SimulationResult),
		Failures:    make(map[string]string),
	}

	var mu sync.Mutex
	record := func(id string, result *domain.SimulationResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			dto.Failures[id] = err.Error()
			return
		}
		dto.Results[id] = result
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, spec := range domain.AllGarchSpecs() {
		g.Go(func() error {
			result, err := s.runGarchGuarded(gctx, spec, prices, returns, req)
			record(spec.ID(), result, err)
			return nil
		})
	}
	for _, model := range []string{domain.ModelBankHistorical, domain.ModelBankMonteCarlo, domain.ModelBankRiskMetrics, domain.ModelBankSimpleVar} {
		g.Go(func() error {
			result, err := s.runClassicGuarded(gctx, model, prices, returns, req)
			record(model, result, err)
			return nil
		})
	}
	_ = g.Wait()

	logging.Info(ctx, "model bank completed",
		"symbol", dto.Symbol,
		"succeeded", len(dto.Results),
		"failed", len(dto.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return dto, nil
}

// RunSingleModel 运行模型库中的单个成员
func (s *RiskApplicationService) RunSingleModel(ctx context.Context, req *SimulationRequest) (*domain.SimulationResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if req.Model == "" {
		return nil, validationErrorf("model must not be empty")
	}

	prices, returns, err := s.fetchInstrument(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	for _, spec := range domain.AllGarchSpecs() {
		if spec.ID() == req.Model {
			return s.runGarchGuarded(ctx, spec, prices, returns, req)
		}
	}
	return s.runClassicGuarded(ctx, req.Model, prices, returns, req)
}

// fetchInstrument 解析单个标的并构建价格与收益序列
func (s *RiskApplicationService) fetchInstrument(ctx context.Context, symbol string) (*domain.PriceSeries, *domain.ReturnSeries, error) {
	inst, history, err := s.market.Resolve(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	prices := toPriceSeries(inst.Symbol, history)
	returns, err := domain.NewReturnSeries(prices)
	if err != nil {
		return nil, nil, err
	}
	return prices, returns, nil
}

// runGarchGuarded 在 panic 隔离下拟合并模拟单个 GARCH 变体
func (s *RiskApplicationService) runGarchGuarded(ctx context.Context, spec domain.GarchSpec, prices *domain.PriceSeries, returns *domain.ReturnSeries, req *SimulationRequest) (result *domain.SimulationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model %s panicked: %v", spec.ID(), r)
			logging.Error(ctx, "model fit panicked", "model", spec.ID(), "symbol", prices.Symbol, "panic", fmt.Sprint(r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return domain.RunGarchModel(spec, prices, returns, req.Confidence, req.HorizonDays, req.Simulations, newRNG())
}

// runClassicGuarded 在 panic 隔离下运行单个经典模型
func (s *RiskApplicationService) runClassicGuarded(ctx context.Context, model string, prices *domain.PriceSeries, returns *domain.ReturnSeries, req *SimulationRequest) (result *domain.SimulationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model %s panicked: %v", model, r)
			logging.Error(ctx, "model run panicked", "model", model, "symbol", prices.Symbol, "panic", fmt.Sprint(r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return domain.RunClassicModel(model, prices, returns, req.Confidence, req.HorizonDays, req.Simulations, newRNG())
}
