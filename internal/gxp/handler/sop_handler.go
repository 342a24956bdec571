package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// SOPHandler SOP文档处理器
type SOPHandler struct {
	svc *service.SOPService
}

func NewSOPHandler(svc *service.SOPService) *SOPHandler {
	return &SOPHandler{svc: svc}
}

// List 资产SOP列表（按上传时间倒序）
// GET /api/v1/assets/:id/sops
func (h *SOPHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取SOP列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "total": len(items)})
}

// Get SOP详情（含AI审核报告与提取规则）
// GET /api/v1/sops/:id
func (h *SOPHandler) Get(c *gin.Context) {
	sop, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "SOP不存在")
			return
		}
		InternalError(c, "获取SOP失败: "+err.Error())
		return
	}
	Success(c, sop)
}

// Upload 上传SOP文档并触发AI合规审核
// POST /api/v1/assets/:id/sops （multipart表单：title/version/category/content + file）
func (h *SOPHandler) Upload(c *gin.Context) {
	var req service.UploadSOPRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer file.Close()

	sop, err := h.svc.Upload(
		c.Request.Context(),
		c.Param("id"),
		GetUserID(c),
		&req,
		file,
		fileHeader.Filename,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		if errors.Is(err, service.ErrActionInFlight) {
			Conflict(c, "该资产的SOP审核进行中，请稍候")
			return
		}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			BadRequest(c, verr.Error())
			return
		}
		InternalError(c, "上传SOP失败: "+err.Error())
		return
	}
	Created(c, sop)
}

// Delete 删除SOP（仅管理员）
// DELETE /api/v1/sops/:id
func (h *SOPHandler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"), GetUserRole(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "SOP不存在")
			return
		}
		if errors.Is(err, service.ErrForbidden) {
			Forbidden(c, "仅管理员可删除SOP")
			return
		}
		InternalError(c, "删除SOP失败: "+err.Error())
		return
	}
	Success(c, nil)
}
