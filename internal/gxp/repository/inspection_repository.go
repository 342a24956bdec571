package repository

import (
	"context"
	"errors"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"gorm.io/gorm"
)

// InspectionRepository 巡检记录仓库
// 只追加：没有Update/Delete
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// FindByAsset 查询资产的巡检记录，按巡检日期倒序
func (r *InspectionRepository) FindByAsset(ctx context.Context, assetID string) ([]entity.Inspection, error) {
	var items []entity.Inspection
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("date DESC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找巡检记录
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inspection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inspection, nil
}

// Create 追加巡检记录
func (r *InspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	return r.db.WithContext(ctx).Create(inspection).Error
}

// CountByAsset 统计资产巡检数
func (r *InspectionRepository) CountByAsset(ctx context.Context, assetID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Inspection{}).
		Where("asset_id = ?", assetID).Count(&count).Error
	return count, err
}
