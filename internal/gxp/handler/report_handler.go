package handler

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
)

// ReportHandler 表格验证报告处理器
type ReportHandler struct {
	svc *service.SpreadsheetService
}

func NewReportHandler(svc *service.SpreadsheetService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Analyze 上传xlsx并执行公式验证
// POST /api/v1/assets/:id/excel-reports （multipart表单：file）
func (h *ReportHandler) Analyze(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	if ext := strings.ToLower(fileHeader.Filename); !strings.HasSuffix(ext, ".xlsx") && !strings.HasSuffix(ext, ".xlsm") {
		BadRequest(c, "仅支持xlsx/xlsm文件")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer file.Close()

	report, err := h.svc.Analyze(c.Request.Context(), c.Param("id"), GetUserID(c), fileHeader.Filename, file)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "资产不存在")
			return
		}
		if errors.Is(err, service.ErrActionInFlight) {
			Conflict(c, "该资产的表格验证进行中，请稍候")
			return
		}
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			BadRequest(c, verr.Error())
			return
		}
		InternalError(c, "表格验证失败: "+err.Error())
		return
	}
	Created(c, report)
}

// List 资产的历史验证报告（含已过保留期的，按上传时间倒序）
// GET /api/v1/assets/:id/excel-reports
func (h *ReportHandler) List(c *gin.Context) {
	items, err := h.svc.ListReports(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取验证报告失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "total": len(items)})
}

// Get 报告详情
// GET /api/v1/excel-reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "报告不存在")
			return
		}
		InternalError(c, "获取报告失败: "+err.Error())
		return
	}
	Success(c, report)
}

// DownloadCorrected 生成并下载修正版表格
// GET /api/v1/excel-reports/:id/corrected
func (h *ReportHandler) DownloadCorrected(c *gin.Context) {
	f, fileName, err := h.svc.GenerateCorrected(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "报告不存在")
			return
		}
		if errors.Is(err, service.ErrOriginalMissing) {
			NotFound(c, "原始文件已不存在，无法生成修正版")
			return
		}
		InternalError(c, "生成修正版失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename*=UTF-8''`+url.PathEscape(fileName))
	if err := f.Write(c.Writer); err != nil {
		// 响应头已发出，只能中断
		c.Abort()
	}
}
