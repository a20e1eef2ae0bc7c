package models

import (
	"time"
)

// 报警事件状态
const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusCleared      = "cleared"
)

// 报警规则类型（目前仅支持阈值规则）
const (
	RuleTypeThreshold = "threshold"
)

// ThresholdParams 阈值规则参数
type ThresholdParams struct {
	Min      float64 `json:"min"`
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
	Max      float64 `json:"max"`
}

// AlertRule 报警规则（对应 alert_rules 表）
type AlertRule struct {
	IDAlertRule     string          `json:"id_alert_rule" db:"id_alert_rule"`
	IDSensorChannel string          `json:"id_sensor_channel" db:"id_sensor_channel"`
	RuleType        string          `json:"rule_type" db:"rule_type"`
	Severity        string          `json:"severity" db:"severity"`
	Params          ThresholdParams `json:"params" db:"params"` // JSONB
	Enabled         bool            `json:"enabled" db:"enabled"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// AlertEvent 报警事件（对应 alert_events 表）
// 生命周期：open -> acknowledged -> cleared（open 可直接 cleared；cleared 为终态）
type AlertEvent struct {
	IDAlertEvent   string     `json:"id_alert_event" db:"id_alert_event"`
	IDAlertRule    string     `json:"id_alert_rule" db:"id_alert_rule"`
	TriggeredAt    time.Time  `json:"triggered_at" db:"triggered_at"`
	Value          float64    `json:"value" db:"value"`
	Status         string     `json:"status" db:"status"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ClearedBy      *string    `json:"cleared_by,omitempty" db:"cleared_by"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty" db:"cleared_at"`
	Note           *string    `json:"note,omitempty" db:"note"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
