package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	instrdomain "github.com/wyfcoding/riskengine/internal/instrument/domain"
	"github.com/wyfcoding/riskengine/internal/riskmodel/application"
	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// RiskHandler 负责处理组合风险与模型库相关的 HTTP 请求
type RiskHandler struct {
	svc *application.RiskApplicationService
}

// NewRiskHandler 创建 HTTP 处理器
func NewRiskHandler(svc *application.RiskApplicationService) *RiskHandler {
	return &RiskHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *RiskHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1")
	{
		api.POST("/portfolio/var", h.ComputeVaR)
		api.POST("/portfolio/analysis", h.ComputeAnalysis)
		api.GET("/portfolio/reports", h.ListReports)
		api.GET("/simulations/available", h.ListModels)
		api.GET("/simulations/:symbol/all", h.RunModelBank)
		api.GET("/simulations/:symbol/:model", h.RunSingleModel)
	}
}

// ComputeVaR 计算组合四方法 VaR
func (h *RiskHandler) ComputeVaR(c *gin.Context) {
	var req application.PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.svc.ComputeSingleVaR(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to compute portfolio var", err)
		return
	}

	response.Success(c, dto)
}

// ComputeAnalysis 计算完整组合分析
func (h *RiskHandler) ComputeAnalysis(c *gin.Context) {
	var req application.PortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.svc.ComputeFullAnalysis(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to compute portfolio analysis", err)
		return
	}

	response.Success(c, dto)
}

// RunModelBank 对单标的运行全部 22 个模型
func (h *RiskHandler) RunModelBank(c *gin.Context) {
	req, ok := h.bindSimulationRequest(c)
	if !ok {
		return
	}

	dto, err := h.svc.RunModelBank(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to run model bank", err)
		return
	}

	response.Success(c, dto)
}

// RunSingleModel 对单标的运行指定模型
func (h *RiskHandler) RunSingleModel(c *gin.Context) {
	req, ok := h.bindSimulationRequest(c)
	if !ok {
		return
	}
	req.Model = c.Param("model")

	result, err := h.svc.RunSingleModel(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to run model", err)
		return
	}

	response.Success(c, result)
}

// ListModels 列出模型库全部成员标识
func (h *RiskHandler) ListModels(c *gin.Context) {
	models := domain.AllModelIDs()
	response.Success(c, gin.H{"models": models, "count": len(models)})
}

// ListReports 查询最近持久化的组合分析报告
func (h *RiskHandler) ListReports(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "limit must be an integer in [1, 100]", "")
			return
		}
		limit = n
	}

	reports, err := h.svc.RecentReports(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, "Failed to list risk reports", err)
		return
	}

	response.Success(c, reports)
}

// bindSimulationRequest 从路径与查询参数组装模拟请求
func (h *RiskHandler) bindSimulationRequest(c *gin.Context) (*application.SimulationRequest, bool) {
	req := &application.SimulationRequest{Symbol: c.Param("symbol")}

	var err error
	if v := c.Query("confidence_level"); v != "" {
		if req.Confidence, err = strconv.ParseFloat(v, 64); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid confidence_level", "")
			return nil, false
		}
	}
	if v := c.Query("time_horizon"); v != "" {
		if req.HorizonDays, err = strconv.Atoi(v); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid time_horizon", "")
			return nil, false
		}
	}
	if v := c.Query("num_simulations"); v != "" {
		if req.Simulations, err = strconv.Atoi(v); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid num_simulations", "")
			return nil, false
		}
	}
	return req, true
}

// writeError 将领域错误映射为 HTTP 状态码
func (h *RiskHandler) writeError(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()

	var validation *application.ValidationError
	var resolution *instrdomain.ResolutionError
	var unavailable *instrdomain.DataUnavailableError
	var insufficient *domain.InsufficientHistoryError
	var divergence *domain.ModelDivergenceError
	var degenerate *domain.NonPositiveSemidefiniteError

	switch {
	case errors.As(err, &validation):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case errors.As(err, &resolution):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.As(err, &insufficient):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.As(err, &divergence), errors.As(err, &degenerate):
		response.ErrorWithStatus(c, http.StatusUnprocessableEntity, err.Error(), "")
	case errors.As(err, &unavailable):
		logging.Error(ctx, msg, "error", err)
		response.ErrorWithStatus(c, http.StatusBadGateway, err.Error(), "")
	default:
		logging.Error(ctx, msg, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}
