package threshold

import "iot-ingest/internal/models"

// Level 表示阈值分级结果
type Level string

const (
	LevelSafe     Level = "safe"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Classify 按阈值参数对工程值分级
// 判定顺序: 越界 (v < min 或 v > max) 判 critical,
// 其次 warning <= v <= critical 区间判 warning, 其余判 safe
func Classify(value float64, params models.ThresholdParams) Level {
	if value < params.Min || value > params.Max {
		return LevelCritical
	}
	if value >= params.Warning && value <= params.Critical {
		return LevelWarning
	}
	return LevelSafe
}

// ShouldAlert 判断分级结果是否需要产生告警事件
func ShouldAlert(level Level) bool {
	return level == LevelWarning || level == LevelCritical
}
