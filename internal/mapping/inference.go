package mapping

import (
	"strings"

	"iot-ingest/internal/models"
)

// 槽位类型推断的关键词提示表, 按声明顺序匹配
var (
	timestampHints = []string{"time", "date"}
	stringHints    = []string{"id", "device", "identifier"}
	numberHints    = []string{"rssi", "snr", "signal", "quality"}
)

// InferSlotType 根据完整路径猜测元数据槽位类型
// 仅用于编辑器预填新绑定, 操作员可覆盖
func InferSlotType(path string) string {
	lowered := strings.ToLower(path)

	for _, hint := range timestampHints {
		if strings.Contains(lowered, hint) {
			return models.SlotTypeTimestamp
		}
	}
	for _, hint := range stringHints {
		if strings.Contains(lowered, hint) {
			return models.SlotTypeString
		}
	}
	for _, hint := range numberHints {
		if strings.Contains(lowered, hint) {
			return models.SlotTypeNumber
		}
	}
	return models.SlotTypeString
}
