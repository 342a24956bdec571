package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sagepharm/valen/internal/gxp/entity"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/testutil"
	"github.com/sagepharm/valen/internal/shared/llm"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExtractFormulaCells(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "A1", 1)
	f.SetCellValue(sheet, "B1", 2)
	// 显式公式（带缓存值，和真实文件一致）
	f.SetCellValue(sheet, "C1", 3)
	f.SetCellFormula(sheet, "C1", "A1+B1")
	// 字面值以=开头，也按公式处理
	f.SetCellValue(sheet, "A2", "=SUM(A1:B1)")
	f.SetCellValue(sheet, "B2", "plain text")

	cells, err := ExtractFormulaCells(f)
	if err != nil {
		t.Fatalf("ExtractFormulaCells: %v", err)
	}

	if len(cells) != 2 {
		t.Fatalf("extracted %d cells, want 2: %+v", len(cells), cells)
	}

	// 行主序：C1在A2之前
	if cells[0].Address != "C1" || cells[1].Address != "A2" {
		t.Errorf("order = [%s %s], want [C1 A2]", cells[0].Address, cells[1].Address)
	}

	// 公式统一带=前缀
	for _, c := range cells {
		if !strings.HasPrefix(c.Formula, "=") {
			t.Errorf("cell %s formula %q missing = prefix", c.Address, c.Formula)
		}
	}
	if cells[1].Formula != "=SUM(A1:B1)" {
		t.Errorf("A2 formula = %q, want =SUM(A1:B1)", cells[1].Formula)
	}
}

func TestExtractFormulaCellsNoFormulas(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "A1", "批号")
	f.SetCellValue(sheet, "B1", 20.5)
	f.SetCellValue(sheet, "A2", "A-001")

	cells, err := ExtractFormulaCells(f)
	if err != nil {
		t.Fatalf("ExtractFormulaCells: %v", err)
	}
	if len(cells) != 0 {
		t.Errorf("extracted %d cells from formula-free sheet, want 0", len(cells))
	}
}

func TestExtractFormulaCellsRowMajorOrder(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	// 3行×2列公式，应按 A1 B1 A2 B2 A3 B3 顺序
	for row := 1; row <= 3; row++ {
		for col := 1; col <= 2; col++ {
			addr, _ := excelize.CoordinatesToCellName(col, row)
			f.SetCellValue(sheet, addr, row*col)
			f.SetCellFormula(sheet, addr, "1+1")
		}
	}

	cells, err := ExtractFormulaCells(f)
	if err != nil {
		t.Fatalf("ExtractFormulaCells: %v", err)
	}

	want := []string{"A1", "B1", "A2", "B2", "A3", "B3"}
	if len(cells) != len(want) {
		t.Fatalf("extracted %d cells, want %d", len(cells), len(want))
	}
	for i, addr := range want {
		if cells[i].Address != addr {
			t.Errorf("cells[%d] = %s, want %s", i, cells[i].Address, addr)
		}
	}
}

func TestApplyCorrectionsSuggestedValue(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "B2", 10)
	f.SetCellFormula(sheet, "B2", "A1*0")

	err := ApplyCorrections(f, sheet, []entity.Discrepancy{
		{Cell: "B2", Reason: "公式结果恒为0", Severity: entity.SeverityHigh, SuggestedValue: "42"},
	})
	if err != nil {
		t.Fatalf("ApplyCorrections: %v", err)
	}

	formula, _ := f.GetCellFormula(sheet, "B2")
	if formula != "" {
		t.Errorf("B2 formula = %q, want cleared", formula)
	}
	value, _ := f.GetCellValue(sheet, "B2")
	if value != "42" {
		t.Errorf("B2 value = %q, want 42", value)
	}
}

func TestApplyCorrectionsSuggestedFormula(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "C3", 5)
	f.SetCellFormula(sheet, "C3", "A1+A1")

	err := ApplyCorrections(f, sheet, []entity.Discrepancy{
		{Cell: "C3", Reason: "应为区间求和", Severity: entity.SeverityMedium, SuggestedFormula: "SUM(A1:A2)"},
	})
	if err != nil {
		t.Fatalf("ApplyCorrections: %v", err)
	}

	formula, _ := f.GetCellFormula(sheet, "C3")
	if !strings.Contains(formula, "SUM(A1:A2)") {
		t.Errorf("C3 formula = %q, want SUM(A1:A2)", formula)
	}

	// 修正单元格必须带标注
	comments, err := f.GetComments(sheet)
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	found := false
	for _, c := range comments {
		if c.Cell == "C3" {
			found = true
		}
	}
	if !found {
		t.Error("corrected cell C3 has no annotation comment")
	}
}

func TestApplyCorrectionsSkipsItemsWithoutSuggestion(t *testing.T) {
	f := newTestWorkbook(t)
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "A1", 7)
	f.SetCellFormula(sheet, "A1", "3+4")

	err := ApplyCorrections(f, sheet, []entity.Discrepancy{
		{Cell: "A1", Reason: "仅说明，无建议", Severity: entity.SeverityLow},
		{Cell: "N/A", Reason: "降级占位项", Severity: entity.SeverityHigh, SuggestedValue: "0"},
	})
	if err != nil {
		t.Fatalf("ApplyCorrections: %v", err)
	}

	formula, _ := f.GetCellFormula(sheet, "A1")
	if formula == "" {
		t.Error("A1 formula was cleared but no suggestion was given")
	}
}

func TestAnalyzeCapsFormulaCells(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	testutil.SeedTestAsset(t, db, "asset-cap-01", "配液罐", entity.CategoryWaterSystem)

	// 记录送往AI服务的请求体，校验截断后的单元格清单
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		prompt = string(body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"discrepancies": [], "summary": "ok"}`}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client := llm.NewClient(srv.URL, "", "test-model", 5*time.Second, zap.NewNop())
	gateway := llm.NewGateway(client, zap.NewNop())
	sopSvc := NewSOPService(repos.SOP, repos.Asset, gateway, nil, "")
	svc := NewSpreadsheetService(repos.Report, repos.Asset, sopSvc, gateway, zap.NewNop(), t.TempDir(), 2, 6)

	// 3个公式单元格，上限2：行主序保留A1、B1，A2被截掉
	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	f.SetCellFormula(sheet, "A1", "B1+1")
	f.SetCellFormula(sheet, "B1", "A1*2")
	f.SetCellFormula(sheet, "A2", "SUM(A1:B1)")
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()

	report, err := svc.Analyze(context.Background(), "asset-cap-01", "test-op-001", "cap.xlsx", &buf)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	// 总数记全量，送检截断
	if report.TotalFormulas != 3 {
		t.Errorf("TotalFormulas = %d, want 3", report.TotalFormulas)
	}
	if !strings.Contains(prompt, "A1") || !strings.Contains(prompt, "B1") {
		t.Errorf("prompt missing capped cells: %s", prompt)
	}
	if strings.Contains(prompt, "A2") {
		t.Errorf("prompt contains truncated cell A2: %s", prompt)
	}
}

func TestAnalyzeRejectsUnknownAsset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	client := llm.NewClient("http://127.0.0.1:1", "", "test-model", time.Second, zap.NewNop())
	gateway := llm.NewGateway(client, zap.NewNop())
	sopSvc := NewSOPService(repos.SOP, repos.Asset, gateway, nil, "")
	svc := NewSpreadsheetService(repos.Report, repos.Asset, sopSvc, gateway, zap.NewNop(), t.TempDir(), 50, 6)

	f := excelize.NewFile()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()

	if _, err := svc.Analyze(context.Background(), "no-such-asset", "test-op-001", "x.xlsx", &buf); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	reports, err := svc.ListReports(context.Background(), "no-such-asset")
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("reports persisted for unknown asset: %d", len(reports))
	}
}

func TestCorrectedFileName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.xlsx", "report_corrected.xlsx"},
		{"批记录.xlsm", "批记录_corrected.xlsm"},
		{"noext", "noext_corrected.xlsx"},
		{"/tmp/nested/calc.xlsx", "calc_corrected.xlsx"},
	}
	for _, c := range cases {
		if got := correctedFileName(c.in); got != c.want {
			t.Errorf("correctedFileName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
