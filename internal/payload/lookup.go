package payload

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup 按点号路径在文档中查找叶子值
// 与 Flatten 使用相同的寻址方案：每一段都必须命中一个普通对象的键；
// 中途遇到缺失键、数组或原始值时视为缺失（ok=false），不是错误
func Lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	if path == "" || doc == nil {
		return nil, false
	}

	segments := strings.Split(path, ".")
	current := interface{}(doc)

	for i, seg := range segments {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok := obj[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		current = value
	}

	return nil, false
}

// ToNumber 将载荷值安全转换为 float64
// 支持 JSON 数值、数值字符串和布尔值（true=1, false=0）
func ToNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
