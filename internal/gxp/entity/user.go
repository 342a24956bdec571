package entity

import (
	"time"
)

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// User 用户
// 凭证只存bcrypt哈希且永不序列化进任何响应
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:32"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Role         string     `json:"role" gorm:"size:16;not null;default:operator"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
