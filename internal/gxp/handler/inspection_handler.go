package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// InspectionHandler 巡检记录处理器
type InspectionHandler struct {
	svc      *service.InspectionService
	draftSvc *service.DraftService
}

func NewInspectionHandler(svc *service.InspectionService, draftSvc *service.DraftService) *InspectionHandler {
	return &InspectionHandler{svc: svc, draftSvc: draftSvc}
}

// List 资产巡检历史（按日期倒序）
// GET /api/v1/assets/:id/inspections
func (h *InspectionHandler) List(c *gin.Context) {
	items, err := h.svc.ListInspections(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		InternalError(c, "获取巡检记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "total": len(items)})
}

// Create 提交巡检记录
// POST /api/v1/assets/:id/inspections
// 成功提交后清除该表单草稿
func (h *InspectionHandler) Create(c *gin.Context) {
	var req service.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	assetID := c.Param("id")
	userID := GetUserID(c)

	inspection, err := h.svc.CreateInspection(c.Request.Context(), assetID, userID, &req)
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
		InternalError(c, "保存巡检记录失败: "+err.Error())
		return
	}

	h.draftSvc.Clear(c.Request.Context(), userID, "inspection:"+assetID)

	Created(c, inspection)
}

// Schema 按系统类别返回参数表单模式
// GET /api/v1/form-schemas/:category
func (h *InspectionHandler) Schema(c *gin.Context) {
	category := c.Param("category")
	fields := entity.ParamSchemaFor(category)
	if fields == nil {
		NotFound(c, "未知的系统类别: "+category)
		return
	}
	Success(c, gin.H{"category": category, "fields": fields})
}

// Schemas 全部类别的参数表单模式
// GET /api/v1/form-schemas
func (h *InspectionHandler) Schemas(c *gin.Context) {
	Success(c, entity.ParamSchemas())
}
