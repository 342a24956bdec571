package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// Gateway — 能力网关
// 五个业务操作：验证协议生成、风险分析、SOP规则提取、电子表格验证、翻译。
// 约定：任何失败都不向调用方抛错，而是返回该操作定义好的降级值，
// 调用方永远拿到结构完整的结果。
// =============================================================================

// FormulaCell 送检的公式单元格
type FormulaCell struct {
	Address string `json:"address"`
	Formula string `json:"formula"`
	Value   string `json:"value"`
}

// Discrepancy 电子表格差异项
type Discrepancy struct {
	Cell             string `json:"cell"`
	Formula          string `json:"formula"`
	Value            string `json:"value"`
	Reason           string `json:"reason"`
	Severity         string `json:"severity"` // high/medium/low
	SuggestedFormula string `json:"suggestedFormula,omitempty"`
	SuggestedValue   string `json:"suggestedValue,omitempty"`
}

// RuleExtraction SOP规则提取结果
type RuleExtraction struct {
	Status string `json:"status"` // compliant/partial/non_compliant
	Report string `json:"report"`
	Rules  string `json:"rules"`
}

// ValidationOutcome 电子表格验证结果
type ValidationOutcome struct {
	Discrepancies []Discrepancy `json:"discrepancies"`
	Summary       string        `json:"summary"`
}

// Gateway 能力网关
type Gateway struct {
	client   *Client
	logger   *zap.Logger
	inflight sync.Map // 逻辑动作key → struct{}，同一动作同时只允许一次在途调用
}

// NewGateway 创建能力网关
func NewGateway(client *Client, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger,
	}
}

// TryAcquire 尝试占用一个逻辑动作（如 "protocol:asset-001"）
// 返回false表示该动作已有在途调用，调用方应拒绝重复触发
func (g *Gateway) TryAcquire(key string) bool {
	_, loaded := g.inflight.LoadOrStore(key, struct{}{})
	return !loaded
}

// Release 释放逻辑动作
func (g *Gateway) Release(key string) {
	g.inflight.Delete(key)
}

// GenerateProtocol 生成验证协议清单
// 失败时返回固定错误文案（字面错误字符串，不抛错）
func (g *Gateway) GenerateProtocol(ctx context.Context, name, category, stage string) string {
	system := "你是制药行业计算机化系统验证(CSV)专家，熟悉GAMP 5风险分级方法。"
	user := fmt.Sprintf(
		"为以下系统生成%s阶段的验证协议检查清单（markdown格式，含检查项、接受标准、记录要求）：\n系统名称：%s\n系统类别：%s",
		stage, name, category)

	content, err := g.client.Chat(ctx, system, user)
	if err != nil {
		g.logger.Warn("protocol generation failed", zap.String("system", name), zap.Error(err))
		return "协议生成失败：AI服务暂时不可用，请稍后重试"
	}
	return content
}

// AnalyzeRisk 风险分析
// 失败时返回固定错误文案
func (g *Gateway) AnalyzeRisk(ctx context.Context, description, category string) string {
	system := "你是制药行业质量风险管理专家，按ICH Q9方法输出风险评估。"
	user := fmt.Sprintf("对以下%s类系统的描述做风险分析，输出风险点、影响、建议控制措施：\n%s",
		category, description)

	content, err := g.client.Chat(ctx, system, user)
	if err != nil {
		g.logger.Warn("risk analysis failed", zap.Error(err))
		return "风险分析失败：AI服务暂时不可用，请稍后重试"
	}
	return content
}

// ExtractSOPRules 从SOP文本提取合规结论与验证规则
// 失败时返回固定的"不合规/服务错误"结果，规则为空
func (g *Gateway) ExtractSOPRules(ctx context.Context, title, category, content string) RuleExtraction {
	system := "你是制药行业SOP审核专家。只输出JSON，不要输出任何其他文字。"
	user := fmt.Sprintf(`审核以下SOP并输出JSON，字段：
{"status": "compliant|partial|non_compliant", "report": "审核报告文本", "rules": "可用于电子表格验证的规则条文，逐条列出"}
SOP标题：%s
SOP类别：%s
SOP内容：
%s`, title, category, content)

	var result RuleExtraction
	if err := g.client.ChatJSON(ctx, system, user, &result); err != nil {
		g.logger.Warn("sop rule extraction failed", zap.String("title", title), zap.Error(err))
		return RuleExtraction{
			Status: "non_compliant",
			Report: "AI服务调用失败，无法完成SOP审核",
			Rules:  "",
		}
	}
	if result.Status == "" {
		result.Status = "non_compliant"
	}
	return result
}

// ValidateSpreadsheet 验证电子表格公式单元格
// 失败时返回单条高严重度的合成差异项
func (g *Gateway) ValidateSpreadsheet(ctx context.Context, filename string, cells []FormulaCell, ruleContext string) ValidationOutcome {
	system := "你是制药行业电子表格验证专家（GAMP 5附录适用）。只输出JSON，不要输出任何其他文字。"

	var sb strings.Builder
	for _, cell := range cells {
		fmt.Fprintf(&sb, "- %s: formula=%q value=%q\n", cell.Address, cell.Formula, cell.Value)
	}

	context_ := "通用完整性检查：公式引用范围合理、无硬编码覆盖、无循环引用、计算逻辑与表头语义一致。"
	if ruleContext != "" {
		context_ = "按以下SOP规则验证：\n" + ruleContext
	}

	user := fmt.Sprintf(`验证文件 %s 的公式单元格，输出JSON：
{"discrepancies": [{"cell": "B2", "formula": "...", "value": "...", "reason": "...", "severity": "high|medium|low", "suggestedFormula": "可选", "suggestedValue": "可选"}], "summary": "总结"}
无问题的单元格不要出现在discrepancies中。每个差异项最多给出suggestedFormula或suggestedValue其中之一。
%s
单元格列表：
%s`, filename, context_, sb.String())

	var result ValidationOutcome
	if err := g.client.ChatJSON(ctx, system, user, &result); err != nil {
		g.logger.Warn("spreadsheet validation failed", zap.String("filename", filename), zap.Error(err))
		return ValidationOutcome{
			Discrepancies: []Discrepancy{
				{
					Cell:     "N/A",
					Reason:   "AI验证服务不可用，本次分析未能完成",
					Severity: "high",
				},
			},
			Summary: "验证失败：外部分析服务调用出错",
		}
	}
	if result.Discrepancies == nil {
		result.Discrepancies = []Discrepancy{}
	}
	return result
}

// Translate 翻译文本
// 失败时原文返回（永不破坏输入）
func (g *Gateway) Translate(ctx context.Context, text string) string {
	system := "你是专业翻译。中文译为英文，英文译为中文，保留术语准确性。只输出译文。"

	content, err := g.client.Chat(ctx, system, text)
	if err != nil {
		g.logger.Warn("translate failed", zap.Error(err))
		return text
	}
	return content
}
