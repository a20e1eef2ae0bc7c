package convert

import (
	"fmt"
	"math"

	"iot-ingest/internal/formula"
	"iot-ingest/internal/models"
)

// ConversionError 表示原始值到工程值转换失败
// 管道遇到该错误时记录 bad 质量标记, 不中断整条消息
type ConversionError struct {
	Raw    float64
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed for raw value %g: %s", e.Raw, e.Reason)
}

// Convert 将原始读数转换为工程值
// 规则携带公式时优先执行公式, 否则应用线性系数 raw*m + b
// 任何非有限结果都视为转换失败
func Convert(raw float64, rule models.ConversionRule) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, &ConversionError{Raw: raw, Reason: "raw value is not finite"}
	}

	if rule.Formula != "" {
		expr, err := formula.Parse(rule.Formula)
		if err != nil {
			return 0, &ConversionError{Raw: raw, Reason: fmt.Sprintf("invalid formula: %v", err)}
		}
		value, err := expr.Eval(raw)
		if err != nil {
			return 0, &ConversionError{Raw: raw, Reason: fmt.Sprintf("formula evaluation: %v", err)}
		}
		return value, nil
	}

	value := raw*rule.Multiplier + rule.Offset
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ConversionError{Raw: raw, Reason: "linear conversion produced non-finite value"}
	}
	return value, nil
}
