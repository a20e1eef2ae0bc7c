package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iot-ingest/internal/convert"
	"iot-ingest/internal/mapping"
	"iot-ingest/internal/models"
	"iot-ingest/internal/threshold"
)

// ProfileSource 设备到档案的查询接口
type ProfileSource interface {
	GetProfileForDevice(ctx context.Context, deviceID string) (string, error)
}

// SpecSource 映射规格来源（通常是 mapping.Cache）
type SpecSource interface {
	Get(ctx context.Context, profileID string) (*models.MappingSpecification, error)
}

// ConversionSource 通道换算规则来源
type ConversionSource interface {
	GetEffectiveConversion(ctx context.Context, channelID string) (models.ConversionRule, error)
}

// RuleSource 通道报警规则来源
type RuleSource interface {
	GetEnabledByChannel(ctx context.Context, channelID string) ([]*models.AlertRule, error)
}

// AlertOpener 报警事件创建接口（通常是 alert.Manager）
type AlertOpener interface {
	Open(ctx context.Context, rule *models.AlertRule, value float64, triggeredAt time.Time) (*models.AlertEvent, error)
}

// Engine 遥测摄入引擎
// 一条原始消息进来, 按映射规格解析全部通道, 换算工程值,
// 评估阈值并产出读数与报警事件
type Engine struct {
	profiles    ProfileSource
	specs       SpecSource
	conversions ConversionSource
	rules       RuleSource
	alerts      AlertOpener
	source      string
	logger      *zap.Logger
}

// NewEngine 创建摄入引擎
func NewEngine(
	profiles ProfileSource,
	specs SpecSource,
	conversions ConversionSource,
	rules RuleSource,
	alerts AlertOpener,
	source string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		profiles:    profiles,
		specs:       specs,
		conversions: conversions,
		rules:       rules,
		alerts:      alerts,
		source:      source,
		logger:      logger,
	}
}

// channelOutcome 单通道处理结果（屏障前的中间态）
type channelOutcome struct {
	channelID string
	reading   *models.SensorLog
	triggered []*models.AlertRule
	value     float64
}

// IngestTelemetry 处理一条设备载荷
// 每个通道并发解析与换算, 屏障汇合后统一定稿;
// 单通道缺失或换算失败记 bad 读数, 不影响其余通道;
// ctx 在落库交接前取消则整条消息丢弃, 不产生部分结果
func (e *Engine) IngestTelemetry(ctx context.Context, deviceID string, payload map[string]interface{}, arrivedAt time.Time, payloadSeq string) ([]*models.SensorLog, []*models.AlertEvent, error) {
	if deviceID == "" {
		return nil, nil, fmt.Errorf("device_id is required")
	}

	profileID, err := e.profiles.GetProfileForDevice(ctx, deviceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve profile for device %s: %w", deviceID, err)
	}

	spec, err := e.specs.Get(ctx, profileID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mapping spec for profile %s: %w", profileID, err)
	}
	if !spec.Enabled {
		return nil, nil, fmt.Errorf("mapping spec for profile %s is disabled", profileID)
	}

	resolved, meta := mapping.Resolve(spec, payload, arrivedAt)

	channelIDs := make([]string, 0, len(resolved))
	for channelID := range resolved {
		channelIDs = append(channelIDs, channelID)
	}
	sort.Strings(channelIDs)

	outcomes := make([]channelOutcome, len(channelIDs))
	var wg sync.WaitGroup
	for i, channelID := range channelIDs {
		wg.Add(1)
		go func(i int, channelID string) {
			defer wg.Done()
			outcomes[i] = e.processChannel(ctx, channelID, resolved[channelID], meta.Timestamp, arrivedAt, payloadSeq)
		}(i, channelID)
	}
	wg.Wait()

	// 落库交接前的取消检查: 整条消息要么全量交出, 要么全量丢弃
	if err := ctx.Err(); err != nil {
		e.logger.Warn("Ingestion cancelled, discarding payload",
			zap.String("device_id", deviceID),
			zap.String("payload_seq", payloadSeq),
		)
		return nil, nil, err
	}

	readings := make([]*models.SensorLog, 0, len(outcomes))
	var events []*models.AlertEvent
	for _, outcome := range outcomes {
		readings = append(readings, outcome.reading)
		for _, rule := range outcome.triggered {
			event, err := e.alerts.Open(ctx, rule, outcome.value, meta.Timestamp)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open alert for rule %s: %w", rule.IDAlertRule, err)
			}
			events = append(events, event)
		}
	}

	e.logger.Debug("Payload ingested",
		zap.String("device_id", deviceID),
		zap.String("profile_id", profileID),
		zap.Int("readings", len(readings)),
		zap.Int("alert_events", len(events)),
	)
	return readings, events, nil
}

func (e *Engine) processChannel(ctx context.Context, channelID string, value mapping.ResolvedValue, ts, arrivedAt time.Time, payloadSeq string) channelOutcome {
	reading := &models.SensorLog{
		IDSensorLog:     uuid.New().String(),
		IDSensorChannel: channelID,
		TS:              ts,
		QualityFlag:     models.QualityGood,
		IngestionSource: e.source,
		PayloadSeq:      payloadSeq,
	}
	outcome := channelOutcome{channelID: channelID, reading: reading}

	finalize := func() channelOutcome {
		reading.IngestionLatencyMs = time.Since(arrivedAt).Milliseconds()
		return outcome
	}

	if value.Absent {
		reading.QualityFlag = models.QualityBad
		return finalize()
	}

	raw := value.Raw
	reading.ValueRaw = &raw

	rule, err := e.conversions.GetEffectiveConversion(ctx, channelID)
	if err != nil {
		e.logger.Warn("Failed to load conversion rule, flagging reading bad",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		reading.QualityFlag = models.QualityBad
		return finalize()
	}

	engineered, err := convert.Convert(raw, rule)
	if err != nil {
		e.logger.Warn("Conversion failed, flagging reading bad",
			zap.String("channel_id", channelID),
			zap.Float64("value_raw", raw),
			zap.Error(err),
		)
		reading.QualityFlag = models.QualityBad
		return finalize()
	}
	reading.ValueEngineered = &engineered
	outcome.value = engineered

	alertRules, err := e.rules.GetEnabledByChannel(ctx, channelID)
	if err != nil {
		e.logger.Warn("Failed to load alert rules for channel",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return finalize()
	}

	worst := threshold.LevelSafe
	for _, alertRule := range alertRules {
		if alertRule.RuleType != models.RuleTypeThreshold {
			continue
		}
		level := threshold.Classify(engineered, alertRule.Params)
		if severityRank(level) > severityRank(worst) {
			worst = level
		}
		if threshold.ShouldAlert(level) {
			outcome.triggered = append(outcome.triggered, alertRule)
		}
	}
	if len(alertRules) > 0 {
		reading.StatusCode = string(worst)
	}

	return finalize()
}

func severityRank(level threshold.Level) int {
	switch level {
	case threshold.LevelCritical:
		return 2
	case threshold.LevelWarning:
		return 1
	default:
		return 0
	}
}
