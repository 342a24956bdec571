package entity

import (
	"time"
)

// SOP类别
const (
	SOPCategoryOperation             = "operation"              // 操作规程
	SOPCategoryMaintenance           = "maintenance"            // 维护保养
	SOPCategoryCalibration           = "calibration"            // 校准
	SOPCategoryCleaning              = "cleaning"               // 清洁
	SOPCategorySpreadsheetValidation = "spreadsheet_validation" // 电子表格验证
)

// SOPCategories 全部SOP类别
var SOPCategories = []string{
	SOPCategoryOperation,
	SOPCategoryMaintenance,
	SOPCategoryCalibration,
	SOPCategoryCleaning,
	SOPCategorySpreadsheetValidation,
}

// SOP审核结论
const (
	SOPStatusCompliant    = "compliant"
	SOPStatusPartial      = "partial"
	SOPStatusNonCompliant = "non_compliant"
)

// SOP 标准操作规程文档
// 上传时创建，不做原地更新；删除仅限管理员
// 注意：同类别同时存在多个active SOP是允许的（与源系统一致），
// 取规则上下文时按上传时间最新的active为准
type SOP struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	AssetID  string `json:"asset_id" gorm:"size:32;not null;index"`
	Title    string `json:"title" gorm:"size:200;not null"`
	Version  string `json:"version" gorm:"size:32"`
	Category string `json:"category" gorm:"size:32;not null;index"`
	Active   bool   `json:"active" gorm:"not null;default:true"`

	// 文档存储位置（MinIO对象名或本地路径URL）
	FileURL  string `json:"file_url" gorm:"size:512"`
	FileName string `json:"file_name" gorm:"size:256"`

	// AI审核产物
	ComplianceStatus string `json:"compliance_status" gorm:"size:20"`
	AIReport         string `json:"ai_report" gorm:"type:text"`
	ExtractedRules   string `json:"extracted_rules" gorm:"type:text"`

	UploadedBy string    `json:"uploaded_by" gorm:"size:32"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"not null;index"`
}

func (SOP) TableName() string {
	return "sops"
}

// ValidSOPCategory 校验SOP类别取值
func ValidSOPCategory(category string) bool {
	for _, c := range SOPCategories {
		if c == category {
			return true
		}
	}
	return false
}
