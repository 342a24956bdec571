package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Asset      *AssetRepository
	Inspection *InspectionRepository
	SOP        *SOPRepository
	Report     *ReportRepository
	Draft      *DraftRepository
	User       *UserRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Asset:      NewAssetRepository(db),
		Inspection: NewInspectionRepository(db),
		SOP:        NewSOPRepository(db),
		Report:     NewReportRepository(db),
		Draft:      NewDraftRepository(db),
		User:       NewUserRepository(db),
	}
}
