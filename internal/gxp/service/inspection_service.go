package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
)

// InspectionService 巡检记录服务
type InspectionService struct {
	repo      *repository.InspectionRepository
	assetRepo *repository.AssetRepository
}

func NewInspectionService(repo *repository.InspectionRepository, assetRepo *repository.AssetRepository) *InspectionService {
	return &InspectionService{repo: repo, assetRepo: assetRepo}
}

// CreateInspectionRequest 新建巡检记录请求
type CreateInspectionRequest struct {
	Date           time.Time       `json:"date" binding:"required"`
	Inspector      string          `json:"inspector" binding:"required"`
	Notes          string          `json:"notes"`
	Parameters     json.RawMessage `json:"parameters"`
	SignatureImage string          `json:"signature_image"`
}

// ValidationError 本地校验错误（缺必填字段等），阻止提交，不产生部分写入
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CreateInspection 追加一条巡检记录
// 参数按资产类别的参数模式校验；记录保存后不可修改
func (s *InspectionService) CreateInspection(ctx context.Context, assetID, userID string, req *CreateInspectionRequest) (*entity.Inspection, error) {
	asset, err := s.assetRepo.FindByID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Inspector) == "" {
		return nil, &ValidationError{Field: "inspector", Message: "检查人不能为空"}
	}
	if req.Date.IsZero() {
		return nil, &ValidationError{Field: "date", Message: "巡检日期不能为空"}
	}

	if err := validateParameters(asset.Category, req.Parameters); err != nil {
		return nil, err
	}

	inspection := &entity.Inspection{
		ID:             strings.ReplaceAll(uuid.New().String(), "-", ""),
		AssetID:        assetID,
		Date:           req.Date,
		Inspector:      req.Inspector,
		Notes:          req.Notes,
		Parameters:     req.Parameters,
		SignatureImage: req.SignatureImage,
		CreatedBy:      userID,
	}
	if err := s.repo.Create(ctx, inspection); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}
	return inspection, nil
}

// ListInspections 查询资产的巡检记录（日期倒序）
func (s *InspectionService) ListInspections(ctx context.Context, assetID string) ([]entity.Inspection, error) {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return nil, err
	}
	return s.repo.FindByAsset(ctx, assetID)
}

// validateParameters 按类别参数模式校验parameters
// 必填字段缺失、select字段取值不在枚举内都算校验失败
func validateParameters(category string, raw json.RawMessage) error {
	schema := entity.ParamSchemaFor(category)
	if schema == nil {
		return nil
	}

	params := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return &ValidationError{Field: "parameters", Message: "参数不是合法JSON对象"}
		}
	}

	for _, field := range schema {
		v, ok := params[field.Key]
		if !ok || v == nil || v == "" {
			if field.Required {
				return &ValidationError{Field: field.Key, Message: field.Name + "为必填项"}
			}
			continue
		}

		switch field.Type {
		case entity.FieldNumber:
			switch v.(type) {
			case float64, int:
			default:
				return &ValidationError{Field: field.Key, Message: field.Name + "应为数值"}
			}
		case entity.FieldSelect:
			sv, ok := v.(string)
			if !ok {
				return &ValidationError{Field: field.Key, Message: field.Name + "取值非法"}
			}
			found := false
			for _, opt := range field.Options {
				if opt == sv {
					found = true
					break
				}
			}
			if !found {
				return &ValidationError{Field: field.Key, Message: field.Name + "取值不在选项内"}
			}
		}
	}

	return nil
}
