package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/shared/llm"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// DefaultFormulaCap 单次送检公式单元格上限
const DefaultFormulaCap = 50

// SpreadsheetService 电子表格验证与修正服务
//
// 上传流程（单工作流内严格顺序）：解析 → AI验证 → 保留期盖章 → 持久化。
// 修正文件再生成：重新打开原始文件，按差异项的建议修正并标注，其余单元格不动。
type SpreadsheetService struct {
	reportRepo *repository.ReportRepository
	assetRepo  *repository.AssetRepository
	sopSvc     *SOPService
	gateway    *llm.Gateway
	logger     *zap.Logger

	uploadDir       string
	formulaCap      int
	retentionMonths int
}

func NewSpreadsheetService(
	reportRepo *repository.ReportRepository,
	assetRepo *repository.AssetRepository,
	sopSvc *SOPService,
	gateway *llm.Gateway,
	logger *zap.Logger,
	uploadDir string,
	formulaCap int,
	retentionMonths int,
) *SpreadsheetService {
	if formulaCap <= 0 {
		formulaCap = DefaultFormulaCap
	}
	if retentionMonths <= 0 {
		retentionMonths = DefaultRetentionMonths
	}
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	return &SpreadsheetService{
		reportRepo:      reportRepo,
		assetRepo:       assetRepo,
		sopSvc:          sopSvc,
		gateway:         gateway,
		logger:          logger,
		uploadDir:       uploadDir,
		formulaCap:      formulaCap,
		retentionMonths: retentionMonths,
	}
}

// ExtractFormulaCells 提取首个工作表中的公式单元格
// 两类都算：带显式公式标记的单元格，以及字面值以"="开头的单元格。
// 非公式单元格完全忽略。返回顺序为行主序（自上而下、自左而右）。
func ExtractFormulaCells(f *excelize.File) ([]llm.FormulaCell, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}

	var cells []llm.FormulaCell
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			addr, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				continue
			}

			formula, _ := f.GetCellFormula(sheet, addr)
			formulaLike := strings.HasPrefix(strings.TrimSpace(value), "=")
			if formula == "" && !formulaLike {
				continue
			}

			if formula == "" {
				// 字面值本身是公式样文本
				formula = strings.TrimSpace(value)
			} else if !strings.HasPrefix(formula, "=") {
				formula = "=" + formula
			}

			cells = append(cells, llm.FormulaCell{
				Address: addr,
				Formula: formula,
				Value:   value,
			})
		}
	}
	return cells, nil
}

// Analyze 上传并分析电子表格
// 公式单元格为0时直接给出有效结果，不调用外部能力
func (s *SpreadsheetService) Analyze(ctx context.Context, assetID, userID, fileName string, reader io.Reader) (*entity.ExcelReport, error) {
	if _, err := s.assetRepo.FindByID(ctx, assetID); err != nil {
		return nil, err
	}

	// 原始文件先落盘，修正文件再生成时要重新打开
	storedPath, err := s.storeOriginal(fileName, reader)
	if err != nil {
		return nil, fmt.Errorf("store original file: %w", err)
	}

	f, err := excelize.OpenFile(storedPath)
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	cells, err := ExtractFormulaCells(f)
	if err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	uploadedAt := time.Now()
	report := &entity.ExcelReport{
		ID:            strings.ReplaceAll(uuid.New().String(), "-", ""),
		AssetID:       assetID,
		FileName:      fileName,
		StoredPath:    storedPath,
		UploadedAt:    uploadedAt,
		TotalFormulas: len(cells),
		UploadedBy:    userID,
	}

	if len(cells) == 0 {
		// 无公式：平凡有效，短路返回
		report.Discrepancies = []entity.Discrepancy{}
		report.IsValid = true
		report.Summary = "未发现公式单元格，无需验证"
	} else {
		// 截断策略：行主序前N个（确定性）
		capped := cells
		if len(capped) > s.formulaCap {
			capped = capped[:s.formulaCap]
		}

		actionKey := "excel_validate:" + assetID
		if !s.gateway.TryAcquire(actionKey) {
			os.Remove(storedPath)
			return nil, ErrActionInFlight
		}

		rules, sopTitle := s.sopSvc.ActiveRules(ctx, assetID)
		outcome := s.gateway.ValidateSpreadsheet(ctx, fileName, capped, rules)
		s.gateway.Release(actionKey)

		report.Discrepancies = toEntityDiscrepancies(outcome.Discrepancies)
		report.IsValid = len(report.Discrepancies) == 0
		report.Summary = outcome.Summary
		report.SOPReference = sopTitle
	}

	// 保留期在首次写入前盖章，之后不再修改
	report.RetentionUntil = RetentionDate(uploadedAt, s.retentionMonths)

	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	s.logger.Info("spreadsheet analyzed",
		zap.String("asset_id", assetID),
		zap.String("file", fileName),
		zap.Int("formulas", report.TotalFormulas),
		zap.Int("discrepancies", len(report.Discrepancies)),
		zap.Bool("valid", report.IsValid))

	return report, nil
}

// ListReports 查询资产的历史报告（上传时间倒序，过期不过滤）
func (s *SpreadsheetService) ListReports(ctx context.Context, assetID string) ([]entity.ExcelReport, error) {
	return s.reportRepo.FindByAsset(ctx, assetID)
}

// GetReport 查询报告详情
func (s *SpreadsheetService) GetReport(ctx context.Context, id string) (*entity.ExcelReport, error) {
	return s.reportRepo.FindByID(ctx, id)
}

// GenerateCorrected 按报告差异项再生成修正文件
// 有suggestedFormula：替换公式并清掉字面值；否则有suggestedValue：清公式、写字面值
// （可解析为数值时写数值）。两者都给修正标注。无建议的差异项不动单元格。
// 原始文件缺失时报错，不产出部分文件。
func (s *SpreadsheetService) GenerateCorrected(ctx context.Context, reportID string) (*excelize.File, string, error) {
	report, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		return nil, "", err
	}
	if report.StoredPath == "" {
		return nil, "", ErrOriginalMissing
	}

	f, err := excelize.OpenFile(report.StoredPath)
	if err != nil {
		return nil, "", ErrOriginalMissing
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, "", fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	if err := ApplyCorrections(f, sheet, report.Discrepancies); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("apply corrections: %w", err)
	}

	correctedName := correctedFileName(report.FileName)
	return f, correctedName, nil
}

// ApplyCorrections 把差异项的建议修正写入工作簿
func ApplyCorrections(f *excelize.File, sheet string, discrepancies []entity.Discrepancy) error {
	for _, d := range discrepancies {
		if d.SuggestedFormula == "" && d.SuggestedValue == "" {
			continue
		}
		if d.Cell == "" || d.Cell == "N/A" {
			continue
		}

		if d.SuggestedFormula != "" {
			// 替换公式，清除字面值
			if err := f.SetCellValue(sheet, d.Cell, nil); err != nil {
				return err
			}
			formula := d.SuggestedFormula
			if !strings.HasPrefix(formula, "=") {
				formula = "=" + formula
			}
			if err := f.SetCellFormula(sheet, d.Cell, formula); err != nil {
				return err
			}
		} else {
			// 清除公式，写入建议值
			if err := f.SetCellFormula(sheet, d.Cell, ""); err != nil {
				return err
			}
			if n, err := strconv.ParseFloat(d.SuggestedValue, 64); err == nil {
				if err := f.SetCellValue(sheet, d.Cell, n); err != nil {
					return err
				}
			} else {
				if err := f.SetCellValue(sheet, d.Cell, d.SuggestedValue); err != nil {
					return err
				}
			}
		}

		// 修正标注：引用差异原因
		comment := excelize.Comment{
			Cell:   d.Cell,
			Author: "Valen",
			Paragraph: []excelize.RichTextRun{
				{Text: "修正说明: " + d.Reason, Font: &excelize.Font{Bold: true}},
			},
		}
		if err := f.AddComment(sheet, comment); err != nil {
			return err
		}
	}
	return nil
}

// storeOriginal 原始文件落盘，返回存储路径
func (s *SpreadsheetService) storeOriginal(fileName string, reader io.Reader) (string, error) {
	now := time.Now()
	dir := filepath.Join(s.uploadDir, fmt.Sprintf("%d/%02d", now.Year(), now.Month()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	fileID := strings.ReplaceAll(uuid.New().String(), "-", "")
	savePath := filepath.Join(dir, fmt.Sprintf("%s_%s", fileID[:8], filepath.Base(fileName)))

	dst, err := os.Create(savePath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, reader); err != nil {
		os.Remove(savePath)
		return "", err
	}
	return savePath, nil
}

// correctedFileName 从原始文件名派生修正文件名
func correctedFileName(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	if ext == "" {
		ext = ".xlsx"
	}
	return base + "_corrected" + ext
}

func toEntityDiscrepancies(in []llm.Discrepancy) []entity.Discrepancy {
	out := make([]entity.Discrepancy, 0, len(in))
	for _, d := range in {
		out = append(out, entity.Discrepancy{
			Cell:             d.Cell,
			Formula:          d.Formula,
			Value:            d.Value,
			Reason:           d.Reason,
			Severity:         d.Severity,
			SuggestedFormula: d.SuggestedFormula,
			SuggestedValue:   d.SuggestedValue,
		})
	}
	return out
}
