package service

import (
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/sagepharm/valen/internal/config"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/shared/llm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 业务级错误
var (
	// ErrActionInFlight 同一资产的同类AI动作已在执行
	ErrActionInFlight = errors.New("action already in flight")
	// ErrForbidden 当前角色无权执行该操作
	ErrForbidden = errors.New("operation not permitted for role")
	// ErrOriginalMissing 原始上传文件缺失，无法生成修正版
	ErrOriginalMissing = errors.New("original spreadsheet file missing")
)

// Services 服务集合
type Services struct {
	Auth        *AuthService
	Asset       *AssetService
	Inspection  *InspectionService
	SOP         *SOPService
	Spreadsheet *SpreadsheetService
	Draft       *DraftService
	Dashboard   *DashboardService
	Gateway     *llm.Gateway
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO初始化失败，SOP文档将不落对象存储", zap.Error(err))
			minioClient = nil
		}
	}

	client := llm.NewClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, logger)
	gateway := llm.NewGateway(client, logger)

	sopSvc := NewSOPService(repos.SOP, repos.Asset, gateway, minioClient, cfg.MinIO.Bucket)

	return &Services{
		Auth:       NewAuthService(repos.User, rdb, cfg),
		Asset:      NewAssetService(repos.Asset, gateway),
		Inspection: NewInspectionService(repos.Inspection, repos.Asset),
		SOP:        sopSvc,
		Spreadsheet: NewSpreadsheetService(
			repos.Report,
			repos.Asset,
			sopSvc,
			gateway,
			logger,
			cfg.Validation.UploadDir,
			cfg.Validation.FormulaCap,
			cfg.Validation.RetentionMonths,
		),
		Draft:     NewDraftService(repos.Draft, cfg.Validation.DraftDebounce, logger),
		Dashboard: NewDashboardService(db, repos.Report),
		Gateway:   gateway,
	}
}
