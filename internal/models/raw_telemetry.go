package models

import (
	"encoding/json"
)

// RawTelemetry 原始遥测消息（从 Redis Streams 解析）
type RawTelemetry struct {
	DeviceID  string                 `json:"device_id"`
	ProfileID string                 `json:"profile_id"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"` // 到达时间（Unix 秒）
	Topic     string                 `json:"topic,omitempty"`
}

// ParseRawTelemetry 从 Redis Streams 消息解析原始遥测数据
func ParseRawTelemetry(streamID, streamName string, values map[string]interface{}) (*RawTelemetry, error) {
	// 从 Values 中提取 data 字段（JSON 字符串）
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, ErrInvalidDataFormat
	}

	var raw RawTelemetry
	if err := json.Unmarshal([]byte(dataStr), &raw); err != nil {
		return nil, err
	}

	return &raw, nil
}

// ErrInvalidDataFormat 数据格式错误
var ErrInvalidDataFormat = &DataFormatError{Message: "invalid data format"}

// DataFormatError 数据格式错误类型
type DataFormatError struct {
	Message string
}

func (e *DataFormatError) Error() string {
	return e.Message
}
