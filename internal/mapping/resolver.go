package mapping

import (
	"time"

	"iot-ingest/internal/models"
	"iot-ingest/internal/payload"
)

// 数值时间戳的秒/毫秒分界: 大于等于该值按毫秒解释
const epochMillisCutoff = 1e10

// ResolvedValue 单个通道的解析结果
// Absent 表示路径在载荷中缺失或值不可转为数值
type ResolvedValue struct {
	Raw    float64
	Absent bool
}

// ResolvedMetadata 元数据槽位解析结果
// 未绑定或解析失败的槽位落到各自的缺省值
type ResolvedMetadata struct {
	Timestamp     time.Time
	DeviceID      string
	SignalQuality *float64
}

// Resolve 按映射规格从载荷文档解析通道原始值与元数据
// 每个通道独立解析, 单个通道缺失不影响其他通道
func Resolve(spec *models.MappingSpecification, doc map[string]interface{}, arrivedAt time.Time) (map[string]ResolvedValue, ResolvedMetadata) {
	channels := make(map[string]ResolvedValue, len(spec.ChannelMappings))
	for channelID, binding := range spec.ChannelMappings {
		raw, ok := lookupNumber(doc, binding.PayloadPath)
		if !ok {
			channels[channelID] = ResolvedValue{Absent: true}
			continue
		}
		channels[channelID] = ResolvedValue{Raw: raw}
	}

	meta := ResolvedMetadata{Timestamp: arrivedAt}

	if binding, ok := spec.MetadataMappings[models.SlotTimestamp]; ok {
		if value, found := payload.Lookup(doc, binding.PayloadPath); found {
			meta.Timestamp = CoerceTimestamp(value, arrivedAt)
		}
	}

	if binding, ok := spec.MetadataMappings[models.SlotDeviceID]; ok {
		if value, found := payload.Lookup(doc, binding.PayloadPath); found {
			if s, isStr := value.(string); isStr {
				meta.DeviceID = s
			}
		}
	}

	if binding, ok := spec.MetadataMappings[models.SlotSignalQuality]; ok {
		if raw, found := lookupNumber(doc, binding.PayloadPath); found {
			meta.SignalQuality = &raw
		}
	}

	return channels, meta
}

// CoerceTimestamp 将载荷中的时间戳值归一化为 time.Time
// 数值按 epoch 解释 (>= 1e10 为毫秒, 否则为秒),
// 字符串按 RFC3339 解析, 其余情况回退到消息到达时间
func CoerceTimestamp(value interface{}, arrivedAt time.Time) time.Time {
	if num, ok := payload.ToNumber(value); ok {
		if num <= 0 {
			return arrivedAt
		}
		if num >= epochMillisCutoff {
			return time.UnixMilli(int64(num)).UTC()
		}
		return time.Unix(int64(num), 0).UTC()
	}

	if s, ok := value.(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
	}

	return arrivedAt
}

func lookupNumber(doc map[string]interface{}, path string) (float64, bool) {
	value, ok := payload.Lookup(doc, path)
	if !ok {
		return 0, false
	}
	return payload.ToNumber(value)
}
