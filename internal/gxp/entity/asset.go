package entity

import (
	"time"
)

// 系统类别（固定5类）
const (
	CategoryWaterSystem      = "water_system"      // 制药用水系统
	CategoryHVAC             = "hvac"              // 空调净化系统
	CategoryLabInstrument    = "lab_instrument"    // 实验室仪器
	CategoryMonitoringSensor = "monitoring_sensor" // 在线监测传感器
	CategorySoftware         = "software"          // 计算机化系统软件
)

// Categories 全部系统类别（顺序固定，驱动表单渲染）
var Categories = []string{
	CategoryWaterSystem,
	CategoryHVAC,
	CategoryLabInstrument,
	CategoryMonitoringSensor,
	CategorySoftware,
}

// 风险等级
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// 验证生命周期阶段（有序）
const (
	StageURS = "URS" // 用户需求说明
	StageIQ  = "IQ"  // 安装确认
	StageOQ  = "OQ"  // 运行确认
	StagePQ  = "PQ"  // 性能确认
	StageVSR = "VSR" // 验证总结报告
)

// Stages 验证阶段顺序表
var Stages = []string{StageURS, StageIQ, StageOQ, StagePQ, StageVSR}

// 合规状态
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusDeviation  = "deviation"
	StatusCompliant  = "compliant"
)

// Asset 受监管系统资产
type Asset struct {
	ID             string    `json:"id" gorm:"primaryKey;size:32"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	Category       string    `json:"category" gorm:"size:32;not null;index"`
	Location       string    `json:"location" gorm:"size:128"`
	RiskTier       string    `json:"risk_tier" gorm:"size:16;not null;default:medium"`
	Stage          string    `json:"stage" gorm:"size:8;not null;default:URS"`
	Status         string    `json:"status" gorm:"size:16;not null;default:not_started"`
	Progress       int       `json:"progress" gorm:"not null;default:0"` // [0,100]
	DeviationCount int       `json:"deviation_count" gorm:"not null;default:0"`
	CreatedBy      string    `json:"created_by" gorm:"size:32"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

// DeriveStatus 由进度和偏差数推导合规状态
// 规则：存在未关闭偏差时状态钉死为deviation；
// progress==0 → not_started；progress==100 → compliant；其余 → in_progress
func DeriveStatus(progress, deviationCount int) string {
	if deviationCount > 0 {
		return StatusDeviation
	}
	switch {
	case progress <= 0:
		return StatusNotStarted
	case progress >= 100:
		return StatusCompliant
	default:
		return StatusInProgress
	}
}

// ValidCategory 校验系统类别取值
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// ValidStage 校验验证阶段取值
func ValidStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}
