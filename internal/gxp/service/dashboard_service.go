package service

import (
	"context"
	"time"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"gorm.io/gorm"
)

// DashboardService 验证看板服务
type DashboardService struct {
	db         *gorm.DB
	reportRepo *repository.ReportRepository
}

func NewDashboardService(db *gorm.DB, reportRepo *repository.ReportRepository) *DashboardService {
	return &DashboardService{db: db, reportRepo: reportRepo}
}

// Summary 看板汇总
type Summary struct {
	TotalAssets    int            `json:"total_assets"`
	ByStatus       map[string]int `json:"by_status"`
	ByCategory     map[string]int `json:"by_category"`
	ByRiskTier     map[string]int `json:"by_risk_tier"`
	AvgProgress    float64        `json:"avg_progress"`
	OpenDeviations int            `json:"open_deviations"`
	ExpiredReports int            `json:"expired_reports"`

	RecentInspections []entity.Inspection `json:"recent_inspections"`
}

// GetSummary 汇总全部验证资产的状态分布
func (s *DashboardService) GetSummary(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByRiskTier: map[string]int{},
	}

	row := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) as total,
			COALESCE(AVG(progress), 0) as avg_progress,
			COALESCE(SUM(deviation_count), 0) as deviations
		FROM assets
	`).Row()
	if err := row.Scan(&summary.TotalAssets, &summary.AvgProgress, &summary.OpenDeviations); err != nil {
		return summary, nil // 没有数据时返回空汇总
	}

	type bucket struct {
		Key   string
		Count int
	}

	var byStatus []bucket
	if err := s.db.WithContext(ctx).
		Raw(`SELECT status as key, COUNT(*) as count FROM assets GROUP BY status`).
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		summary.ByStatus[b.Key] = b.Count
	}

	var byCategory []bucket
	if err := s.db.WithContext(ctx).
		Raw(`SELECT category as key, COUNT(*) as count FROM assets GROUP BY category`).
		Scan(&byCategory).Error; err != nil {
		return nil, err
	}
	for _, b := range byCategory {
		summary.ByCategory[b.Key] = b.Count
	}

	var byRisk []bucket
	if err := s.db.WithContext(ctx).
		Raw(`SELECT risk_tier as key, COUNT(*) as count FROM assets GROUP BY risk_tier`).
		Scan(&byRisk).Error; err != nil {
		return nil, err
	}
	for _, b := range byRisk {
		summary.ByRiskTier[b.Key] = b.Count
	}

	expired, err := s.reportRepo.CountExpired(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	summary.ExpiredReports = int(expired)

	var recent []entity.Inspection
	if err := s.db.WithContext(ctx).
		Order("date DESC").Limit(5).Find(&recent).Error; err != nil {
		return nil, err
	}
	summary.RecentInspections = recent

	return summary, nil
}
