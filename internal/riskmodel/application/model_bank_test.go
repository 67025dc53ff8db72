package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

func TestRunModelBankProducesAllModels(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 400}, nil)

	dto, err := svc.RunModelBank(context.Background(), &SimulationRequest{
		Symbol:      "TCS.NS",
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 1000,
	})
	require.NoError(t, err)

	// 成功与失败合计覆盖全部 22 个模型，且无重叠
	total := len(dto.Results) + len(dto.Failures)
	assert.Equal(t, 22, total)
	for id := range dto.Results {
		assert.True(t, domain.IsKnownModel(id), "unexpected id %s", id)
		_, overlap := dto.Failures[id]
		assert.False(t, overlap, "id %s in both results and failures", id)
	}

	// 经典四模型没有似然约束，在确定性桩数据上必定成功
	for _, id := range []string{domain.ModelBankHistorical, domain.ModelBankMonteCarlo, domain.ModelBankRiskMetrics, domain.ModelBankSimpleVar} {
		result, ok := dto.Results[id]
		require.True(t, ok, "classic model %s missing", id)
		assert.Less(t, result.VaR, 0.0)
		assert.True(t, result.Converged)
	}

	// GARCH 成员应多数成功
	assert.GreaterOrEqual(t, len(dto.Results), 15)
	assert.Greater(t, dto.LastPrice, 0.0)
}

func TestRunSingleModel(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 400}, nil)

	result, err := svc.RunSingleModel(context.Background(), &SimulationRequest{
		Symbol:      "TCS.NS",
		Model:       "GARCH-N",
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "GARCH-N", result.Model)
	require.NotNil(t, result.LogLikelihood)
	assert.Less(t, result.VaR, 0.0)

	result, err = svc.RunSingleModel(context.Background(), &SimulationRequest{
		Symbol:      "TCS.NS",
		Model:       domain.ModelBankRiskMetrics,
		Confidence:  0.95,
		HorizonDays: 10,
		Simulations: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModelBankRiskMetrics, result.Model)
	assert.Nil(t, result.LogLikelihood)

	_, err = svc.RunSingleModel(context.Background(), &SimulationRequest{
		Symbol: "TCS.NS",
		Model:  "NOT-A-MODEL",
	})
	assert.Error(t, err)
}

func TestRunModelBankUnknownSymbol(t *testing.T) {
	svc := newTestService(&fakeMarket{observations: 400}, nil)

	_, err := svc.RunModelBank(context.Background(), &SimulationRequest{Symbol: "BAD.NS"})
	assert.Error(t, err)
}
