package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc      *service.AuthService
	draftSvc *service.DraftService
}

func NewAuthHandler(svc *service.AuthService, draftSvc *service.DraftService) *AuthHandler {
	return &AuthHandler{svc: svc, draftSvc: draftSvc}
}

// Login 登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrAuthFailed) {
			Unauthorized(c, "用户名或密码错误")
			return
		}
		InternalError(c, "登录失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"user":  user,
		"token": pair,
	})
}

// Refresh 刷新token
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新凭证无效或已过期")
		return
	}
	Success(c, pair)
}

// Logout 登出
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken  string `json:"refresh_token"`
		DiscardDrafts bool   `json:"discard_drafts"`
	}
	c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		h.svc.Logout(c.Request.Context(), req.RefreshToken)
	}
	if req.DiscardDrafts {
		if err := h.draftSvc.ClearAll(c.Request.Context(), GetUserID(c)); err != nil {
			InternalError(c, "清除草稿失败: "+err.Error())
			return
		}
	}
	Success(c, nil)
}

// Me 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		InternalError(c, "获取用户信息失败: "+err.Error())
		return
	}
	Success(c, user)
}
