package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/shared/llm"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// SOPService SOP文档服务
type SOPService struct {
	repo        *repository.SOPRepository
	assetRepo   *repository.AssetRepository
	gateway     *llm.Gateway
	minioClient *minio.Client
	bucketName  string
}

func NewSOPService(
	repo *repository.SOPRepository,
	assetRepo *repository.AssetRepository,
	gateway *llm.Gateway,
	minioClient *minio.Client,
	bucketName string,
) *SOPService {
	return &SOPService{
		repo:        repo,
		assetRepo:   assetRepo,
		gateway:     gateway,
		minioClient: minioClient,
		bucketName:  bucketName,
	}
}

// UploadSOPRequest 上传SOP请求（表单字段）
type UploadSOPRequest struct {
	Title    string `form:"title" binding:"required"`
	Version  string `form:"version"`
	Category string `form:"category" binding:"required"`
	// 文档正文文本：SOP二进制本身不做解析，正文需随表单另行提供
	Content string `form:"content"`
}

// Upload 上传SOP：存文档、AI提取合规结论与规则、入库
func (s *SOPService) Upload(ctx context.Context, assetID, userID string, req *UploadSOPRequest, reader io.Reader, fileName string, fileSize int64, contentType string) (*entity.SOP, error) {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return nil, err
	}
	if !entity.ValidSOPCategory(req.Category) {
		return nil, &ValidationError{Field: "category", Message: "未知的SOP类别: " + req.Category}
	}

	// 存储文档（MinIO未配置时只记录文件名，文档内容不参与业务逻辑）
	fileURL := ""
	if s.minioClient != nil && reader != nil {
		objectName := fmt.Sprintf("sops/%s/%s%s",
			time.Now().Format("2006/01/02"), uuid.New().String()[:8], filepath.Ext(fileName))
		_, err := s.minioClient.PutObject(ctx, s.bucketName, objectName, reader, fileSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload sop file: %w", err)
		}
		fileURL = objectName
	}

	// AI审核：失败时网关给出固定的不合规降级结果，不中断上传
	content := normalizeText(req.Content)
	extraction := llm.RuleExtraction{}
	if content != "" {
		actionKey := "sop_extract:" + assetID
		if !s.gateway.TryAcquire(actionKey) {
			return nil, ErrActionInFlight
		}
		extraction = s.gateway.ExtractSOPRules(ctx, req.Title, req.Category, content)
		s.gateway.Release(actionKey)
	}

	sop := &entity.SOP{
		ID:               strings.ReplaceAll(uuid.New().String(), "-", ""),
		AssetID:          assetID,
		Title:            req.Title,
		Version:          req.Version,
		Category:         req.Category,
		Active:           true,
		FileURL:          fileURL,
		FileName:         fileName,
		ComplianceStatus: extraction.Status,
		AIReport:         extraction.Report,
		ExtractedRules:   extraction.Rules,
		UploadedBy:       userID,
		UploadedAt:       time.Now(),
	}
	if err := s.repo.Create(ctx, sop); err != nil {
		return nil, fmt.Errorf("create sop: %w", err)
	}
	return sop, nil
}

// List 查询资产的SOP（上传时间倒序）
func (s *SOPService) List(ctx context.Context, assetID string) ([]entity.SOP, error) {
	return s.repo.FindByAsset(ctx, assetID)
}

// Get 查询SOP详情
func (s *SOPService) Get(ctx context.Context, id string) (*entity.SOP, error) {
	return s.repo.FindByID(ctx, id)
}

// Delete 删除SOP
// 角色校验在路由中间件完成，这里再兜底一次，防止绕过路由的调用路径
func (s *SOPService) Delete(ctx context.Context, id, role string) error {
	if role != entity.RoleAdmin {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// ActiveRules 取资产"电子表格验证"类别下最新active SOP的规则上下文
// 不存在时返回空上下文（调用方回退到通用完整性检查）
func (s *SOPService) ActiveRules(ctx context.Context, assetID string) (rules, title string) {
	sop, err := s.repo.FindActiveByCategory(ctx, assetID, entity.SOPCategorySpreadsheetValidation)
	if err != nil {
		return "", ""
	}
	return sop.ExtractedRules, sop.Title
}

// normalizeText 文本归一化：非UTF-8按GBK解码兜底（国内SOP文档常见编码）
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || utf8.ValidString(s) {
		return s
	}
	decoded, _, err := transform.String(simplifiedchinese.GBK.NewDecoder(), s)
	if err != nil {
		return s
	}
	return decoded
}
