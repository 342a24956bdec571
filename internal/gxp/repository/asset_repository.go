package repository

import (
	"context"
	"errors"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"gorm.io/gorm"
)

// AssetRepository 系统资产仓库
type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindAll 查询资产列表
func (r *AssetRepository) FindAll(ctx context.Context, filters map[string]string) ([]entity.Asset, error) {
	var items []entity.Asset

	query := r.db.WithContext(ctx).Model(&entity.Asset{})

	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if risk := filters["risk_tier"]; risk != "" {
		query = query.Where("risk_tier = ?", risk)
	}

	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

// FindByID 根据ID查找资产
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*entity.Asset, error) {
	var asset entity.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

// Create 创建资产
func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

// Update 更新资产
func (r *AssetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Save(asset).Error
}
