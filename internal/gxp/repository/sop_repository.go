package repository

import (
	"context"
	"errors"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"gorm.io/gorm"
)

// SOPRepository SOP文档仓库
type SOPRepository struct {
	db *gorm.DB
}

func NewSOPRepository(db *gorm.DB) *SOPRepository {
	return &SOPRepository{db: db}
}

// FindByAsset 查询资产的SOP，按上传时间倒序
func (r *SOPRepository) FindByAsset(ctx context.Context, assetID string) ([]entity.SOP, error) {
	var items []entity.SOP
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("uploaded_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找SOP
func (r *SOPRepository) FindByID(ctx context.Context, id string) (*entity.SOP, error) {
	var sop entity.SOP
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sop, nil
}

// FindActiveByCategory 查资产某类别下最新的active SOP
// 同类别可能有多个active（不强制唯一），按上传时间最新的为准
func (r *SOPRepository) FindActiveByCategory(ctx context.Context, assetID, category string) (*entity.SOP, error) {
	var sop entity.SOP
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND category = ? AND active = true", assetID, category).
		Order("uploaded_at DESC").
		First(&sop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sop, nil
}

// Create 创建SOP
func (r *SOPRepository) Create(ctx context.Context, sop *entity.SOP) error {
	return r.db.WithContext(ctx).Create(sop).Error
}

// Delete 删除SOP（仅管理员路径可达）
func (r *SOPRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&entity.SOP{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
