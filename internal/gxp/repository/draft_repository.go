package repository

import (
	"context"
	"errors"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftRepository 表单草稿仓库
type DraftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Save 写入草稿（同key覆盖，只保留最新状态）
func (r *DraftRepository) Save(ctx context.Context, draft *entity.Draft) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "form_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
		}).
		Create(draft).Error
}

// Find 读取草稿
func (r *DraftRepository) Find(ctx context.Context, userID, formKey string) (*entity.Draft, error) {
	var draft entity.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND form_key = ?", userID, formKey).
		First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &draft, nil
}

// FindByUser 列出用户的全部草稿（会话恢复用）
func (r *DraftRepository) FindByUser(ctx context.Context, userID string) ([]entity.Draft, error) {
	var items []entity.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&items).Error
	return items, err
}

// Delete 删除单个草稿
func (r *DraftRepository) Delete(ctx context.Context, userID, formKey string) error {
	return r.db.WithContext(ctx).
		Delete(&entity.Draft{}, "user_id = ? AND form_key = ?", userID, formKey).Error
}

// DeleteByUser 删除用户的全部草稿（登出放弃）
func (r *DraftRepository) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Delete(&entity.Draft{}, "user_id = ?", userID).Error
}
