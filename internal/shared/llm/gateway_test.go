package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// chatStub 模拟 chat/completions 接口
func chatStub(t *testing.T, content string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// failingStub 始终返回500错误
func failingStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "overloaded", "type": "server_error"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testGateway(srv *httptest.Server) *Gateway {
	client := NewClient(srv.URL, "test-key", "test-model", 5*time.Second, zap.NewNop())
	return NewGateway(client, zap.NewNop())
}

func TestGenerateProtocolSuccess(t *testing.T) {
	srv, _ := chatStub(t, "# OQ验证协议\n- 检查项1")
	g := testGateway(srv)

	got := g.GenerateProtocol(context.Background(), "纯化水系统", "water_system", "OQ")
	if !strings.Contains(got, "OQ验证协议") {
		t.Errorf("protocol = %q, want model content", got)
	}
}

func TestGenerateProtocolFallback(t *testing.T) {
	g := testGateway(failingStub(t))

	got := g.GenerateProtocol(context.Background(), "纯化水系统", "water_system", "IQ")
	if got != "协议生成失败：AI服务暂时不可用，请稍后重试" {
		t.Errorf("fallback = %q", got)
	}
}

func TestAnalyzeRiskFallback(t *testing.T) {
	g := testGateway(failingStub(t))

	got := g.AnalyzeRisk(context.Background(), "在线TOC监测", "monitoring_sensor")
	if got != "风险分析失败：AI服务暂时不可用，请稍后重试" {
		t.Errorf("fallback = %q", got)
	}
}

func TestExtractSOPRulesSuccess(t *testing.T) {
	srv, _ := chatStub(t, "```json\n{\"status\":\"compliant\",\"report\":\"符合要求\",\"rules\":\"1. B列为均值公式\"}\n```")
	g := testGateway(srv)

	got := g.ExtractSOPRules(context.Background(), "电子表格验证SOP", "spreadsheet_validation", "正文")
	if got.Status != "compliant" {
		t.Errorf("status = %q, want compliant", got.Status)
	}
	if got.Rules == "" {
		t.Error("rules empty on success path")
	}
}

func TestExtractSOPRulesFallback(t *testing.T) {
	g := testGateway(failingStub(t))

	got := g.ExtractSOPRules(context.Background(), "SOP-001", "data_integrity", "正文")
	if got.Status != "non_compliant" {
		t.Errorf("fallback status = %q, want non_compliant", got.Status)
	}
	if got.Rules != "" {
		t.Errorf("fallback rules = %q, want empty", got.Rules)
	}
	if got.Report == "" {
		t.Error("fallback report must explain the failure")
	}
}

func TestValidateSpreadsheetSuccess(t *testing.T) {
	srv, _ := chatStub(t, `{"discrepancies":[{"cell":"B2","formula":"=A1*0","reason":"恒为0","severity":"high","suggestedValue":"42"}],"summary":"1处差异"}`)
	g := testGateway(srv)

	cells := []FormulaCell{{Address: "B2", Formula: "=A1*0", Value: "0"}}
	got := g.ValidateSpreadsheet(context.Background(), "batch.xlsx", cells, "")
	if len(got.Discrepancies) != 1 {
		t.Fatalf("discrepancies = %d, want 1", len(got.Discrepancies))
	}
	if got.Discrepancies[0].SuggestedValue != "42" {
		t.Errorf("suggestedValue = %q, want 42", got.Discrepancies[0].SuggestedValue)
	}
}

func TestValidateSpreadsheetFallback(t *testing.T) {
	g := testGateway(failingStub(t))

	got := g.ValidateSpreadsheet(context.Background(), "batch.xlsx", []FormulaCell{{Address: "A1"}}, "")
	if len(got.Discrepancies) != 1 {
		t.Fatalf("fallback discrepancies = %d, want exactly 1 synthetic item", len(got.Discrepancies))
	}
	d := got.Discrepancies[0]
	if d.Cell != "N/A" || d.Severity != "high" {
		t.Errorf("synthetic discrepancy = %+v", d)
	}
	if got.Summary == "" {
		t.Error("fallback summary empty")
	}
}

func TestValidateSpreadsheetNilDiscrepanciesNormalized(t *testing.T) {
	srv, _ := chatStub(t, `{"summary":"无差异"}`)
	g := testGateway(srv)

	got := g.ValidateSpreadsheet(context.Background(), "ok.xlsx", []FormulaCell{{Address: "A1"}}, "")
	if got.Discrepancies == nil {
		t.Error("discrepancies must be non-nil empty slice")
	}
	if len(got.Discrepancies) != 0 {
		t.Errorf("discrepancies = %d, want 0", len(got.Discrepancies))
	}
}

func TestTranslateFallbackReturnsOriginal(t *testing.T) {
	g := testGateway(failingStub(t))

	original := "偏差已关闭"
	if got := g.Translate(context.Background(), original); got != original {
		t.Errorf("Translate fallback = %q, want original %q", got, original)
	}
}

func TestTryAcquireBlocksConcurrentAction(t *testing.T) {
	srv, _ := chatStub(t, "ok")
	g := testGateway(srv)

	if !g.TryAcquire("protocol:a1") {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire("protocol:a1") {
		t.Error("second acquire of same key should fail")
	}
	// 不同动作key互不影响
	if !g.TryAcquire("risk:a1") {
		t.Error("different key should acquire")
	}

	g.Release("protocol:a1")
	if !g.TryAcquire("protocol:a1") {
		t.Error("acquire after release should succeed")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
