package service

import (
	"time"
)

// DefaultRetentionMonths 分析报告默认保留期（月）
const DefaultRetentionMonths = 6

// RetentionDate 计算报告保留截止日：上传时间+N个日历月
// 写入时调用一次盖章，读取时不重算
func RetentionDate(uploadedAt time.Time, months int) time.Time {
	if months <= 0 {
		months = DefaultRetentionMonths
	}
	return uploadedAt.AddDate(0, months, 0)
}
