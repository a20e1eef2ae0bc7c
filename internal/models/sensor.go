package models

import (
	"time"
)

// ConversionRule 工程单位换算规则（线性或公式，二选一）
// Formula 非空时按公式换算，否则按 raw*Multiplier+Offset
type ConversionRule struct {
	Multiplier float64 `json:"multiplier"`
	Offset     float64 `json:"offset"`
	Formula    string  `json:"formula,omitempty"` // 单变量表达式，变量为 x
}

// LinearIdentity 返回恒等线性规则（multiplier=1, offset=0）
func LinearIdentity() ConversionRule {
	return ConversionRule{Multiplier: 1, Offset: 0}
}

// SensorType 传感器类型（对应 sensor_types 表）
type SensorType struct {
	IDSensorType string          `json:"id_sensor_type" db:"id_sensor_type"`
	Category     string          `json:"category" db:"category"`
	DefaultUnit  string          `json:"default_unit" db:"default_unit"`
	Precision    int             `json:"precision" db:"precision"`
	Conversion   *ConversionRule `json:"conversion,omitempty"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// SensorChannel 传感器通道（对应 sensor_channels 表）
type SensorChannel struct {
	IDSensorChannel string          `json:"id_sensor_channel" db:"id_sensor_channel"`
	IDSensorType    string          `json:"id_sensor_type" db:"id_sensor_type"`
	MetricCode      string          `json:"metric_code" db:"metric_code"`
	Unit            string          `json:"unit" db:"unit"`
	MinThreshold    *float64        `json:"min_threshold,omitempty" db:"min_threshold"`
	MaxThreshold    *float64        `json:"max_threshold,omitempty" db:"max_threshold"`
	Conversion      *ConversionRule `json:"conversion,omitempty"` // 通道级覆盖，优先于类型级规则
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// EffectiveConversion 返回通道实际生效的换算规则
// 通道级规则优先；类型级次之；都没有时为恒等线性
func (c *SensorChannel) EffectiveConversion(sensorType *SensorType) ConversionRule {
	if c.Conversion != nil {
		return *c.Conversion
	}
	if sensorType != nil && sensorType.Conversion != nil {
		return *sensorType.Conversion
	}
	return LinearIdentity()
}

// 读数质量标志
const (
	QualityGood = "good"
	QualityBad  = "bad"
)

// SensorLog 传感器读数（对应 sensor_logs 表，仅追加）
type SensorLog struct {
	IDSensorLog        string    `json:"id_sensor_log" db:"id_sensor_log"`
	IDSensorChannel    string    `json:"id_sensor_channel" db:"id_sensor_channel"`
	TS                 time.Time `json:"ts" db:"ts"`
	ValueRaw           *float64  `json:"value_raw,omitempty" db:"value_raw"`
	ValueEngineered    *float64  `json:"value_engineered,omitempty" db:"value_engineered"`
	QualityFlag        string    `json:"quality_flag" db:"quality_flag"` // good / bad
	IngestionSource    string    `json:"ingestion_source" db:"ingestion_source"`
	StatusCode         string    `json:"status_code" db:"status_code"` // safe / warning / critical（无阈值时为空）
	IngestionLatencyMs int64     `json:"ingestion_latency_ms" db:"ingestion_latency_ms"`
	PayloadSeq         string    `json:"payload_seq" db:"payload_seq"` // 源消息ID，供持久层去重
}
