package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	instrdomain "github.com/wyfcoding/riskengine/internal/instrument/domain"
	"github.com/wyfcoding/riskengine/internal/riskmodel/application"
	riskdomain "github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// stubMarket 确定性的行情桩
type stubMarket struct{}

func (stubMarket) history(symbol string) *instrdomain.History {
	rng := rand.New(rand.NewPCG(uint64(len(symbol)), 3))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 500.0
	h := &instrdomain.History{Symbol: symbol}
	for i := 0; i < 300; i++ {
		h.Points = append(h.Points, instrdomain.PricePoint{Date: start.AddDate(0, 0, i), Close: price})
		price *= math.Exp(0.0004 + 0.01*rng.NormFloat64())
	}
	return h
}

func (s stubMarket) Resolve(_ context.Context, symbol string) (instrdomain.Instrument, *instrdomain.History, error) {
	if symbol == "UNKNOWN" {
		return instrdomain.Instrument{}, nil, &instrdomain.ResolutionError{Symbol: symbol}
	}
	if symbol == "BROKEN" {
		return instrdomain.Instrument{}, nil, errors.New("unexpected provider failure")
	}
	return instrdomain.Instrument{Input: symbol, Symbol: symbol, Kind: instrdomain.KindEquity}, s.history(symbol), nil
}

func (s stubMarket) History(_ context.Context, symbol string) (*instrdomain.History, error) {
	return s.history(symbol), nil
}

func (stubMarket) VIX(context.Context) (float64, bool) { return 13.2, true }

// stubReportRepo 预置报告的仓储桩
type stubReportRepo struct {
	reports []*riskdomain.RiskReport
}

func (r *stubReportRepo) Save(_ context.Context, report *riskdomain.RiskReport) error {
	r.reports = append(r.reports, report)
	return nil
}

func (r *stubReportRepo) FindRecent(_ context.Context, limit int) ([]*riskdomain.RiskReport, error) {
	if limit < len(r.reports) {
		return r.reports[:limit], nil
	}
	return r.reports, nil
}

func newTestRouter() *gin.Engine {
	return newTestRouterWithRepo(nil)
}

func newTestRouterWithRepo(repo riskdomain.ReportRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := application.NewRiskApplicationService(stubMarket{}, repo, nil, 0)
	NewRiskHandler(svc).RegisterRoutes(&r.RouterGroup)
	return r
}

func TestComputeVaREndpoint(t *testing.T) {
	r := newTestRouter()

	body, _ := json.Marshal(map[string]any{
		"holdings": []map[string]any{
			{"symbol": "TCS.NS", "quantity": 10},
		},
		"confidence_level": 0.95,
		"time_horizon":     10,
		"num_simulations":  1000,
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/var", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "total_value")
	assert.Contains(t, w.Body.String(), "historical")
}

func TestComputeVaRBadRequest(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/var", bytes.NewReader([]byte(`{"holdings":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSymbolMapsToNotFound(t *testing.T) {
	r := newTestRouter()

	body, _ := json.Marshal(map[string]any{
		"holdings": []map[string]any{{"symbol": "UNKNOWN", "quantity": 1}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/analysis", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInternalErrorMapsToServerError(t *testing.T) {
	r := newTestRouter()

	body, _ := json.Marshal(map[string]any{
		"holdings": []map[string]any{{"symbol": "BROKEN", "quantity": 1}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/var", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAvailableModelsEndpoint(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/simulations/available", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, id := range []string{"GARCH-N", "EGARCH-SKEWED-T", "GJR-GARCH-GED", "RISK-METRICS", "SIMPLE-VARIANCE"} {
		assert.Contains(t, w.Body.String(), id)
	}
	assert.Contains(t, w.Body.String(), `"count":22`)
}

func TestListReportsEndpoint(t *testing.T) {
	repo := &stubReportRepo{reports: []*riskdomain.RiskReport{
		{Fingerprint: "fp-1", Symbols: "TCS.NS"},
		{Fingerprint: "fp-2", Symbols: "INFY.NS"},
	}}
	r := newTestRouterWithRepo(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/reports?limit=1", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "fp-1")
	assert.NotContains(t, w.Body.String(), "fp-2")

	// limit 越界在边界处拒绝
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/reports?limit=0", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSingleModelEndpoint(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/simulations/TCS.NS/RISK-METRICS?confidence_level=0.95&time_horizon=5&num_simulations=1000", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "RISK-METRICS")

	// 未知模型标识在边界处拒绝
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/simulations/TCS.NS/NOT-A-MODEL", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
