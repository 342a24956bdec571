package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/service"
	"github.com/sagepharm/valen/internal/shared/llm"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	svc     *service.DashboardService
	gateway *llm.Gateway
}

func NewDashboardHandler(svc *service.DashboardService, gateway *llm.Gateway) *DashboardHandler {
	return &DashboardHandler{svc: svc, gateway: gateway}
}

// Summary 看板汇总
// GET /api/v1/dashboard/summary
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.svc.GetSummary(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板数据失败: "+err.Error())
		return
	}
	Success(c, summary)
}

// Translate 界面文本翻译（失败时原文返回）
// POST /api/v1/translate
func (h *DashboardHandler) Translate(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	Success(c, gin.H{"text": h.gateway.Translate(c.Request.Context(), req.Text)})
}
