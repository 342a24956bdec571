package entity

// 参数字段输入类型
const (
	FieldNumber = "number"
	FieldText   = "text"
	FieldSelect = "select"
)

// ParamField 巡检参数字段描述
// 驱动表单渲染和巡检记录parameters的校验，运行期不可变
type ParamField struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Type     string   `json:"type"` // number/text/select
	Unit     string   `json:"unit,omitempty"`
	Options  []string `json:"options,omitempty"` // select类型的枚举值
	Required bool     `json:"required"`
	RegNote  string   `json:"reg_note,omitempty"` // 法规出处标注
}

// paramSchema 系统类别→有序参数字段表（静态）
var paramSchema = map[string][]ParamField{
	CategoryWaterSystem: {
		{Key: "conductivity", Name: "电导率", Type: FieldNumber, Unit: "µS/cm", Required: true, RegNote: "ChP 纯化水项下"},
		{Key: "toc", Name: "总有机碳", Type: FieldNumber, Unit: "ppb", Required: true, RegNote: "USP <643>"},
		{Key: "microbial_count", Name: "微生物计数", Type: FieldNumber, Unit: "CFU/mL", Required: true},
		{Key: "sample_point", Name: "取样点", Type: FieldText, Required: true},
		{Key: "appearance", Name: "外观", Type: FieldSelect, Options: []string{"澄清", "浑浊", "异物"}, Required: false},
	},
	CategoryHVAC: {
		{Key: "temperature", Name: "温度", Type: FieldNumber, Unit: "°C", Required: true},
		{Key: "humidity", Name: "相对湿度", Type: FieldNumber, Unit: "%RH", Required: true},
		{Key: "pressure_diff", Name: "压差", Type: FieldNumber, Unit: "Pa", Required: true, RegNote: "GMP附录1洁净区"},
		{Key: "air_changes", Name: "换气次数", Type: FieldNumber, Unit: "次/h", Required: false},
		{Key: "clean_grade", Name: "洁净级别", Type: FieldSelect, Options: []string{"A", "B", "C", "D"}, Required: true},
	},
	CategoryLabInstrument: {
		{Key: "calibration_status", Name: "校准状态", Type: FieldSelect, Options: []string{"在效期内", "即将到期", "已过期"}, Required: true, RegNote: "ISO/IEC 17025"},
		{Key: "last_calibrated", Name: "上次校准日期", Type: FieldText, Required: true},
		{Key: "baseline_drift", Name: "基线漂移", Type: FieldNumber, Required: false},
		{Key: "usage_log_ok", Name: "使用日志完整", Type: FieldSelect, Options: []string{"是", "否"}, Required: true},
	},
	CategoryMonitoringSensor: {
		{Key: "reading", Name: "当前读数", Type: FieldNumber, Required: true},
		{Key: "alarm_test", Name: "报警测试", Type: FieldSelect, Options: []string{"通过", "失败", "未执行"}, Required: true},
		{Key: "signal_quality", Name: "信号质量", Type: FieldSelect, Options: []string{"正常", "波动", "中断"}, Required: false},
		{Key: "battery_level", Name: "电量", Type: FieldNumber, Unit: "%", Required: false},
	},
	CategorySoftware: {
		{Key: "version", Name: "软件版本", Type: FieldText, Required: true},
		{Key: "audit_trail_on", Name: "审计追踪启用", Type: FieldSelect, Options: []string{"是", "否"}, Required: true, RegNote: "21 CFR Part 11"},
		{Key: "backup_verified", Name: "备份验证", Type: FieldSelect, Options: []string{"通过", "失败", "未执行"}, Required: true},
		{Key: "access_review", Name: "权限复核说明", Type: FieldText, Required: false},
		{Key: "open_deviations", Name: "未关闭偏差数", Type: FieldNumber, Required: false},
	},
}

// ParamSchemaFor 返回类别对应的参数字段表（未知类别返回nil）
func ParamSchemaFor(category string) []ParamField {
	return paramSchema[category]
}

// ParamSchemas 返回完整参数模式表（只读用途）
func ParamSchemas() map[string][]ParamField {
	return paramSchema
}
