package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sagepharm/valen/internal/gxp/repository"
	"github.com/sagepharm/valen/internal/gxp/service"
	"github.com/sagepharm/valen/internal/gxp/testutil"
	"github.com/sagepharm/valen/internal/shared/llm"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validationStub 模拟返回固定差异项的AI服务，计数调用次数
func validationStub(t *testing.T, responseJSON string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": responseJSON}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func setupReportTest(t *testing.T, aiURL string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	client := llm.NewClient(aiURL, "", "test-model", 5*time.Second, zap.NewNop())
	gateway := llm.NewGateway(client, zap.NewNop())

	sopSvc := service.NewSOPService(repos.SOP, repos.Asset, gateway, nil, "")
	reportSvc := service.NewSpreadsheetService(repos.Report, repos.Asset, sopSvc, gateway, zap.NewNop(), t.TempDir(), 50, 6)
	h := NewReportHandler(reportSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/assets/:id/excel-reports", h.List)
	api.POST("/assets/:id/excel-reports", h.Analyze)
	api.GET("/excel-reports/:id", h.Get)
	api.GET("/excel-reports/:id/corrected", h.DownloadCorrected)
	return router, db
}

// buildWorkbook 生成内存xlsx；withFormula为true时在B2放一个公式
func buildWorkbook(t *testing.T, withFormula bool) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetList()[0]

	f.SetCellValue(sheet, "A1", "批号")
	f.SetCellValue(sheet, "A2", "B-2026-001")
	if withFormula {
		f.SetCellValue(sheet, "B2", 0)
		f.SetCellFormula(sheet, "B2", "A1*0")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadWorkbook(t *testing.T, router *gin.Engine, token, assetID string, content []byte, wantCode int) map[string]interface{} {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "batch.xlsx")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/assets/"+assetID+"/excel-reports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != wantCode {
		t.Fatalf("Expected %d, got %d: %s", wantCode, w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if data, ok := resp["data"].(map[string]interface{}); ok {
		return data
	}
	return nil
}

func TestExcelReportZeroFormulasShortCircuits(t *testing.T) {
	srv, calls := validationStub(t, `{"discrepancies":[],"summary":"n/a"}`)
	router, db := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	report := uploadWorkbook(t, router, token, assetID, buildWorkbook(t, false), http.StatusCreated)

	if report["is_valid"] != true {
		t.Errorf("is_valid = %v, want true", report["is_valid"])
	}
	if report["total_formulas"] != float64(0) {
		t.Errorf("total_formulas = %v, want 0", report["total_formulas"])
	}
	// 无公式不得产生外部调用
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Errorf("AI calls = %d, want 0 for formula-free workbook", got)
	}
}

func TestExcelReportRetentionStampedSixMonths(t *testing.T) {
	srv, _ := validationStub(t, `{"discrepancies":[],"summary":"无差异"}`)
	router, db := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	report := uploadWorkbook(t, router, token, assetID, buildWorkbook(t, true), http.StatusCreated)

	uploadedAt, err := time.Parse(time.RFC3339, report["uploaded_at"].(string))
	if err != nil {
		t.Fatalf("parse uploaded_at: %v", err)
	}
	retention, err := time.Parse(time.RFC3339, report["retention_until"].(string))
	if err != nil {
		t.Fatalf("parse retention_until: %v", err)
	}
	want := uploadedAt.AddDate(0, 6, 0)
	if diff := retention.Sub(want); diff > time.Second || diff < -time.Second {
		t.Errorf("retention_until = %v, want %v (+6 calendar months)", retention, want)
	}
}

func TestExcelReportDiscrepanciesMarkInvalid(t *testing.T) {
	srv, _ := validationStub(t, `{"discrepancies":[{"cell":"B2","formula":"=A1*0","reason":"恒为0","severity":"high","suggestedValue":"42"}],"summary":"1处差异"}`)
	router, db := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	report := uploadWorkbook(t, router, token, assetID, buildWorkbook(t, true), http.StatusCreated)

	if report["is_valid"] != false {
		t.Errorf("is_valid = %v, want false with discrepancies", report["is_valid"])
	}
	discrepancies := report["discrepancies"].([]interface{})
	if len(discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1", len(discrepancies))
	}
}

func TestExcelReportAIDownYieldsSyntheticDiscrepancy(t *testing.T) {
	router, db := setupReportTest(t, "http://127.0.0.1:1")
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	report := uploadWorkbook(t, router, token, assetID, buildWorkbook(t, true), http.StatusCreated)

	if report["is_valid"] != false {
		t.Errorf("is_valid = %v, want false on AI failure", report["is_valid"])
	}
	discrepancies := report["discrepancies"].([]interface{})
	if len(discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1 synthetic item", len(discrepancies))
	}
	d := discrepancies[0].(map[string]interface{})
	if d["cell"] != "N/A" || d["severity"] != "high" {
		t.Errorf("synthetic discrepancy = %+v", d)
	}
}

func TestExcelReportUnknownAssetRejected(t *testing.T) {
	srv, calls := validationStub(t, `{"discrepancies": [], "summary": "ok"}`)
	router, _ := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()

	uploadWorkbook(t, router, token, "no-such-asset", buildWorkbook(t, true), http.StatusNotFound)
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Errorf("AI calls = %d, want 0 for unknown asset", got)
	}
}

func TestExcelReportRejectsNonXLSX(t *testing.T) {
	srv, _ := validationStub(t, `{}`)
	router, db := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "notes.txt")
	part.Write([]byte("plain text"))
	writer.Close()

	req, _ := http.NewRequest("POST", "/api/v1/assets/"+assetID+"/excel-reports", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCorrectedFileDownload(t *testing.T) {
	srv, _ := validationStub(t, `{"discrepancies":[{"cell":"B2","formula":"=A1*0","reason":"恒为0","severity":"high","suggestedValue":"42"}],"summary":"1处差异"}`)
	router, db := setupReportTest(t, srv.URL)
	token := testutil.OperatorTestToken()
	assetID := seedWaterAsset(t, db)

	report := uploadWorkbook(t, router, token, assetID, buildWorkbook(t, true), http.StatusCreated)
	reportID := report["id"].(string)

	w := testutil.DoRequest(router, "GET", "/api/v1/excel-reports/"+reportID+"/corrected", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %s", ct)
	}

	corrected, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open corrected workbook: %v", err)
	}
	defer corrected.Close()

	sheet := corrected.GetSheetList()[0]
	formula, _ := corrected.GetCellFormula(sheet, "B2")
	if formula != "" {
		t.Errorf("B2 formula = %q, want cleared", formula)
	}
	value, _ := corrected.GetCellValue(sheet, "B2")
	if value != "42" {
		t.Errorf("B2 value = %q, want 42", value)
	}
	// 未修正单元格保持不动
	a2, _ := corrected.GetCellValue(sheet, "A2")
	if a2 != "B-2026-001" {
		t.Errorf("A2 = %q, untouched cell changed", a2)
	}
}
