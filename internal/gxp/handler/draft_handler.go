package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// DraftHandler 表单草稿处理器
type DraftHandler struct {
	svc *service.DraftService
}

func NewDraftHandler(svc *service.DraftService) *DraftHandler {
	return &DraftHandler{svc: svc}
}

type draftRequest struct {
	FormKey string          `json:"form_key" binding:"required"`
	State   json.RawMessage `json:"state" binding:"required"`
}

// Touch 记一次编辑（防抖落库）
// POST /api/v1/drafts
func (h *DraftHandler) Touch(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	h.svc.Touch(GetUserID(c), req.FormKey, req.State)
	Success(c, nil)
}

// Flush 立即落库（页面离开前调用）
// POST /api/v1/drafts/flush
func (h *DraftHandler) Flush(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.Flush(c.Request.Context(), GetUserID(c), req.FormKey, req.State); err != nil {
		InternalError(c, "保存草稿失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Restore 恢复单个表单草稿
// GET /api/v1/drafts/:form_key
func (h *DraftHandler) Restore(c *gin.Context) {
	draft, err := h.svc.Restore(c.Request.Context(), GetUserID(c), c.Param("form_key"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "草稿不存在")
			return
		}
		InternalError(c, "恢复草稿失败: "+err.Error())
		return
	}
	Success(c, draft)
}

// List 当前用户全部草稿
// GET /api/v1/drafts
func (h *DraftHandler) List(c *gin.Context) {
	drafts, err := h.svc.RestoreAll(c.Request.Context(), GetUserID(c))
	if err != nil {
		InternalError(c, "获取草稿列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": drafts, "total": len(drafts)})
}

// Clear 丢弃单个表单草稿
// DELETE /api/v1/drafts/:form_key
func (h *DraftHandler) Clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), GetUserID(c), c.Param("form_key")); err != nil {
		InternalError(c, "删除草稿失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// ClearAll 丢弃当前用户全部草稿
// DELETE /api/v1/drafts
func (h *DraftHandler) ClearAll(c *gin.Context) {
	if err := h.svc.ClearAll(c.Request.Context(), GetUserID(c)); err != nil {
		InternalError(c, "清空草稿失败: "+err.Error())
		return
	}
	Success(c, nil)
}
