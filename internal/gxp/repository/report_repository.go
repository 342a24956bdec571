package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"gorm.io/gorm"
)

// ReportRepository 电子表格分析报告仓库
// 报告不可变：保留期等修正必须在首次写入前完成，这里没有Update
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// FindByAsset 查询资产的分析报告，按上传时间倒序
// 超过保留期的报告不过滤（保留期只展示，不清除）
func (r *ReportRepository) FindByAsset(ctx context.Context, assetID string) ([]entity.ExcelReport, error) {
	var items []entity.ExcelReport
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("uploaded_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找报告
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*entity.ExcelReport, error) {
	var report entity.ExcelReport
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// Create 写入报告（调用方必须已盖好保留期）
func (r *ReportRepository) Create(ctx context.Context, report *entity.ExcelReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// CountExpired 统计已过保留期的报告数
func (r *ReportRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ExcelReport{}).
		Where("retention_until < ?", now).Count(&count).Error
	return count, err
}
