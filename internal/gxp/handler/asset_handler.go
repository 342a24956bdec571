package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// AssetHandler 验证资产处理器
type AssetHandler struct {
	svc *service.AssetService
}

func NewAssetHandler(svc *service.AssetService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

// List 资产列表
// GET /api/v1/assets?category=&status=&risk_tier=
func (h *AssetHandler) List(c *gin.Context) {
	filters := map[string]string{}
	if v := c.Query("category"); v != "" {
		filters["category"] = v
	}
	if v := c.Query("status"); v != "" {
		filters["status"] = v
	}
	if v := c.Query("risk_tier"); v != "" {
		filters["risk_tier"] = v
	}

	assets, err := h.svc.ListAssets(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "获取资产列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": assets, "total": len(assets)})
}

// Get 资产详情
// GET /api/v1/assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.svc.GetAsset(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		InternalError(c, "获取资产失败: "+err.Error())
		return
	}
	Success(c, asset)
}

// Create 创建资产
// POST /api/v1/assets
func (h *AssetHandler) Create(c *gin.Context) {
	var req service.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	asset, err := h.svc.CreateAsset(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			BadRequest(c, verr.Error())
			return
		}
		InternalError(c, "创建资产失败: "+err.Error())
		return
	}
	Created(c, asset)
}

// UpdateProgress 更新验证进度与阶段
// PUT /api/v1/assets/:id/progress
func (h *AssetHandler) UpdateProgress(c *gin.Context) {
	var req service.UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	asset, err := h.svc.UpdateProgress(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			BadRequest(c, verr.Error())
			return
		}
		InternalError(c, "更新进度失败: "+err.Error())
		return
	}
	Success(c, asset)
}

// RecordDeviation 登记偏差
// POST /api/v1/assets/:id/deviations
func (h *AssetHandler) RecordDeviation(c *gin.Context) {
	asset, err := h.svc.RecordDeviation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		InternalError(c, "登记偏差失败: "+err.Error())
		return
	}
	Success(c, asset)
}

// CloseDeviation 关闭偏差
// DELETE /api/v1/assets/:id/deviations
func (h *AssetHandler) CloseDeviation(c *gin.Context) {
	asset, err := h.svc.CloseDeviation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		InternalError(c, "关闭偏差失败: "+err.Error())
		return
	}
	Success(c, asset)
}

// GenerateProtocol 生成当前阶段验证协议草案
// POST /api/v1/assets/:id/protocol
func (h *AssetHandler) GenerateProtocol(c *gin.Context) {
	text, err := h.svc.GenerateProtocol(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		if errors.Is(err, service.ErrActionInFlight) {
			Conflict(c, "协议生成进行中，请稍候")
			return
		}
		InternalError(c, "生成协议失败: "+err.Error())
		return
	}
	Success(c, gin.H{"protocol": text})
}

// AnalyzeRisk 风险评估
// POST /api/v1/assets/:id/risk-analysis
func (h *AssetHandler) AnalyzeRisk(c *gin.Context) {
	var req service.AnalyzeRiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	text, err := h.svc.AnalyzeRisk(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		if errors.Is(err, service.ErrActionInFlight) {
			Conflict(c, "风险评估进行中，请稍候")
			return
		}
		InternalError(c, "风险评估失败: "+err.Error())
		return
	}
	Success(c, gin.H{"analysis": text})
}
