package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/shared/llm"
)

// AssetService 系统资产服务
type AssetService struct {
	repo    *repository.AssetRepository
	gateway *llm.Gateway
}

func NewAssetService(repo *repository.AssetRepository, gateway *llm.Gateway) *AssetService {
	return &AssetService{repo: repo, gateway: gateway}
}

// CreateAssetRequest 创建资产请求
type CreateAssetRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Location string `json:"location"`
	RiskTier string `json:"risk_tier"`
	Stage    string `json:"stage"`
}

// CreateAsset 创建资产
func (s *AssetService) CreateAsset(ctx context.Context, userID string, req *CreateAssetRequest) (*entity.Asset, error) {
	if !entity.ValidCategory(req.Category) {
		return nil, &ValidationError{Field: "category", Message: "未知的系统类别: " + req.Category}
	}
	if req.RiskTier == "" {
		req.RiskTier = entity.RiskMedium
	}
	if req.Stage == "" {
		req.Stage = entity.StageURS
	}
	if !entity.ValidStage(req.Stage) {
		return nil, &ValidationError{Field: "stage", Message: "未知的验证阶段: " + req.Stage}
	}

	asset := &entity.Asset{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		Name:      req.Name,
		Category:  req.Category,
		Location:  req.Location,
		RiskTier:  req.RiskTier,
		Stage:     req.Stage,
		Status:    entity.StatusNotStarted,
		Progress:  0,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return asset, nil
}

// ListAssets 查询资产列表
func (s *AssetService) ListAssets(ctx context.Context, filters map[string]string) ([]entity.Asset, error) {
	return s.repo.FindAll(ctx, filters)
}

// GetAsset 查询资产详情
func (s *AssetService) GetAsset(ctx context.Context, id string) (*entity.Asset, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProgressRequest 进度更新请求
type UpdateProgressRequest struct {
	Progress int    `json:"progress" binding:"min=0,max=100"`
	Stage    string `json:"stage"`
}

// UpdateProgress 更新验证进度并推导合规状态
// progress==100 且无未关闭偏差 → compliant；progress==0 → not_started
func (s *AssetService) UpdateProgress(ctx context.Context, id string, req *UpdateProgressRequest) (*entity.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	asset.Progress = req.Progress
	if req.Stage != "" {
		if !entity.ValidStage(req.Stage) {
			return nil, &ValidationError{Field: "stage", Message: "未知的验证阶段: " + req.Stage}
		}
		asset.Stage = req.Stage
	}
	asset.Status = entity.DeriveStatus(asset.Progress, asset.DeviationCount)

	if err := s.repo.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	return asset, nil
}

// RecordDeviation 记录一次偏差，状态立即转为deviation
func (s *AssetService) RecordDeviation(ctx context.Context, id string) (*entity.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	asset.DeviationCount++
	asset.Status = entity.DeriveStatus(asset.Progress, asset.DeviationCount)

	if err := s.repo.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("record deviation: %w", err)
	}
	return asset, nil
}

// CloseDeviation 关闭一个偏差，偏差清零后状态按进度重导
func (s *AssetService) CloseDeviation(ctx context.Context, id string) (*entity.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if asset.DeviationCount > 0 {
		asset.DeviationCount--
	}
	asset.Status = entity.DeriveStatus(asset.Progress, asset.DeviationCount)

	if err := s.repo.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("close deviation: %w", err)
	}
	return asset, nil
}

// GenerateProtocol 为资产当前阶段生成验证协议清单
// 同一资产同时只允许一次在途生成；失败时网关返回字面错误文案
func (s *AssetService) GenerateProtocol(ctx context.Context, id string) (string, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	actionKey := "protocol:" + id
	if !s.gateway.TryAcquire(actionKey) {
		return "", ErrActionInFlight
	}
	defer s.gateway.Release(actionKey)

	return s.gateway.GenerateProtocol(ctx, asset.Name, asset.Category, asset.Stage), nil
}

// AnalyzeRiskRequest 风险分析请求
type AnalyzeRiskRequest struct {
	Description string `json:"description" binding:"required"`
}

// AnalyzeRisk 对资产做风险分析
func (s *AssetService) AnalyzeRisk(ctx context.Context, id string, req *AnalyzeRiskRequest) (string, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	actionKey := "risk:" + id
	if !s.gateway.TryAcquire(actionKey) {
		return "", ErrActionInFlight
	}
	defer s.gateway.Release(actionKey)

	return s.gateway.AnalyzeRisk(ctx, req.Description, asset.Category), nil
}
