package entity

import (
	"encoding/json"
	"time"
)

// Inspection 巡检记录
// 按资产追加写入，一经保存不可修改
type Inspection struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	AssetID   string    `json:"asset_id" gorm:"size:32;not null;index"`
	Date      time.Time `json:"date" gorm:"not null;index"`
	Inspector string    `json:"inspector" gorm:"size:64;not null"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 参数名→值，结构由资产类别的参数模式决定
	Parameters json.RawMessage `json:"parameters" gorm:"type:jsonb"`

	// 电子签名图片（data URL或对象存储URL）
	SignatureImage string `json:"signature_image" gorm:"type:text"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (Inspection) TableName() string {
	return "inspections"
}
