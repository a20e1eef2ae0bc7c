package models

import (
	"time"
)

// 元数据槽位名称（固定集合）
const (
	SlotTimestamp     = "timestamp"
	SlotDeviceID      = "deviceId"
	SlotSignalQuality = "signalQuality"
)

// 元数据槽位类型
const (
	SlotTypeTimestamp = "timestamp"
	SlotTypeString    = "string"
	SlotTypeNumber    = "number"
)

// PayloadField 载荷字段（扁平化产物，不持久化）
type PayloadField struct {
	Path  string      `json:"path"`  // 点号分隔的键路径，如 "data.telemetry.pressure_bar"
	Value interface{} `json:"value"` // 叶子值（原始类型或整个数组）
}

// ChannelMapping 通道绑定（通道标识 -> 载荷路径）
type ChannelMapping struct {
	PayloadPath string `json:"payload_path"`
}

// MetadataMapping 元数据槽位绑定
type MetadataMapping struct {
	PayloadPath  string `json:"payload_path"`
	InferredType string `json:"inferred_type"` // timestamp / string / number
}

// MappingSpecification 映射规格（对应 mapping_specs 表，JSONB 按设备档案存储）
type MappingSpecification struct {
	ProfileID        string                     `json:"profile_id"`
	ChannelMappings  map[string]ChannelMapping  `json:"channel_mappings"`  // 键为通道ID
	MetadataMappings map[string]MetadataMapping `json:"metadata_mappings"` // 键为槽位名称
	Enabled          bool                       `json:"enabled"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// ValidSlot 检查槽位名称是否合法
func ValidSlot(name string) bool {
	switch name {
	case SlotTimestamp, SlotDeviceID, SlotSignalQuality:
		return true
	}
	return false
}

// ValidSlotType 检查槽位类型是否合法
func ValidSlotType(t string) bool {
	switch t {
	case SlotTypeTimestamp, SlotTypeString, SlotTypeNumber:
		return true
	}
	return false
}
