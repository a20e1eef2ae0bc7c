package payload

import (
	"sort"

	"iot-ingest/internal/models"
)

// Flatten 将任意 JSON 文档扁平化为可寻址的叶子字段列表
// 规则：
// - 仅递归进入普通嵌套对象，路径以点号拼接（parent.key）
// - 数组和非对象值都是叶子（数组整体作为一个字段，不按下标展开）
// - 键按字典序遍历，同一文档多次扁平化结果一致，且与源键顺序无关
func Flatten(doc map[string]interface{}) []models.PayloadField {
	var fields []models.PayloadField
	flattenInto(doc, "", &fields)
	return fields
}

func flattenInto(obj map[string]interface{}, parentPath string, out *[]models.PayloadField) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := obj[key]
		path := key
		if parentPath != "" {
			path = parentPath + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			flattenInto(nested, path, out)
			continue
		}

		// 数组和原始值都是叶子
		*out = append(*out, models.PayloadField{
			Path:  path,
			Value: value,
		})
	}
}
