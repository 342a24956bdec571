package entity

import (
	"time"
)

// 差异严重度
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Discrepancy 电子表格差异项
// suggestedFormula / suggestedValue 每项修正最多取其一
type Discrepancy struct {
	Cell             string `json:"cell"`
	Formula          string `json:"formula"`
	Value            string `json:"value"`
	Reason           string `json:"reason"`
	Severity         string `json:"severity"`
	SuggestedFormula string `json:"suggestedFormula,omitempty"`
	SuggestedValue   string `json:"suggestedValue,omitempty"`
}

// ExcelReport 电子表格验证分析报告
// 每次上传创建一条，不可变；保留期到期后仍可列出（不清除）
type ExcelReport struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	AssetID  string `json:"asset_id" gorm:"size:32;not null;index"`
	FileName string `json:"file_name" gorm:"size:256;not null"`

	// 原始文件本地存储路径，修正文件再生成时重新打开
	StoredPath string `json:"-" gorm:"size:512"`

	UploadedAt     time.Time `json:"uploaded_at" gorm:"not null;index"`
	RetentionUntil time.Time `json:"retention_until" gorm:"not null"` // 上传时间+6个月，写入时盖章

	TotalFormulas int           `json:"total_formulas" gorm:"not null;default:0"`
	Discrepancies []Discrepancy `json:"discrepancies" gorm:"serializer:json;type:jsonb"`
	IsValid       bool          `json:"is_valid" gorm:"not null;default:false"` // 差异列表为空时为true
	Summary       string        `json:"summary" gorm:"type:text"`

	// 作为规则上下文的SOP标题（可为空）
	SOPReference string `json:"sop_reference" gorm:"size:200"`

	UploadedBy string `json:"uploaded_by" gorm:"size:32"`
}

func (ExcelReport) TableName() string {
	return "excel_reports"
}

// Expired 报告是否超过保留期
func (r *ExcelReport) Expired(now time.Time) bool {
	return now.After(r.RetentionUntil)
}
