package entity

import (
	"encoding/json"
	"time"
)

// Draft 表单草稿
// 按 (用户, 表单key) 唯一，只保留最新状态，不存历史
// 提交成功或显式放弃时删除
type Draft struct {
	UserID    string          `json:"user_id" gorm:"primaryKey;size:32"`
	FormKey   string          `json:"form_key" gorm:"primaryKey;size:64"`
	State     json.RawMessage `json:"state" gorm:"type:jsonb"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Draft) TableName() string {
	return "drafts"
}
