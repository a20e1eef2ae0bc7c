package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// SensorChannelsRepository 传感器通道/类型仓库
type SensorChannelsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSensorChannelsRepository 创建传感器通道仓库
func NewSensorChannelsRepository(db *sql.DB, logger *zap.Logger) *SensorChannelsRepository {
	return &SensorChannelsRepository{
		db:     db,
		logger: logger,
	}
}

// GetChannel 按通道ID读取通道定义（含通道级换算规则）
func (r *SensorChannelsRepository) GetChannel(ctx context.Context, channelID string) (*models.SensorChannel, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}

	query := `
		SELECT
			id_sensor_channel,
			id_sensor_type,
			metric_code,
			unit,
			min_threshold,
			max_threshold,
			conversion,
			created_at,
			updated_at
		FROM sensor_channels
		WHERE id_sensor_channel = $1
	`

	var channel models.SensorChannel
	var minThreshold, maxThreshold sql.NullFloat64
	var conversion []byte

	err := r.db.QueryRowContext(ctx, query, channelID).Scan(
		&channel.IDSensorChannel,
		&channel.IDSensorType,
		&channel.MetricCode,
		&channel.Unit,
		&minThreshold,
		&maxThreshold,
		&conversion,
		&channel.CreatedAt,
		&channel.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sensor channel not found: id=%s", channelID)
		}
		return nil, fmt.Errorf("failed to get sensor channel: %w", err)
	}

	if minThreshold.Valid {
		channel.MinThreshold = &minThreshold.Float64
	}
	if maxThreshold.Valid {
		channel.MaxThreshold = &maxThreshold.Float64
	}
	if len(conversion) > 0 {
		var rule models.ConversionRule
		if err := json.Unmarshal(conversion, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal channel conversion rule: %w", err)
		}
		channel.Conversion = &rule
	}

	return &channel, nil
}

// GetSensorType 按类型ID读取传感器类型（含类型级换算规则）
func (r *SensorChannelsRepository) GetSensorType(ctx context.Context, typeID string) (*models.SensorType, error) {
	if typeID == "" {
		return nil, fmt.Errorf("type_id is required")
	}

	query := `
		SELECT
			id_sensor_type,
			category,
			default_unit,
			precision,
			conversion,
			created_at,
			updated_at
		FROM sensor_types
		WHERE id_sensor_type = $1
	`

	var sensorType models.SensorType
	var conversion []byte

	err := r.db.QueryRowContext(ctx, query, typeID).Scan(
		&sensorType.IDSensorType,
		&sensorType.Category,
		&sensorType.DefaultUnit,
		&sensorType.Precision,
		&conversion,
		&sensorType.CreatedAt,
		&sensorType.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sensor type not found: id=%s", typeID)
		}
		return nil, fmt.Errorf("failed to get sensor type: %w", err)
	}

	if len(conversion) > 0 {
		var rule models.ConversionRule
		if err := json.Unmarshal(conversion, &rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal type conversion rule: %w", err)
		}
		sensorType.Conversion = &rule
	}

	return &sensorType, nil
}

// GetEffectiveConversion 读取通道实际生效的换算规则
// 通道级覆盖优先于类型级, 都没有时为恒等线性
func (r *SensorChannelsRepository) GetEffectiveConversion(ctx context.Context, channelID string) (models.ConversionRule, error) {
	channel, err := r.GetChannel(ctx, channelID)
	if err != nil {
		return models.ConversionRule{}, err
	}
	if channel.Conversion != nil {
		return *channel.Conversion, nil
	}

	sensorType, err := r.GetSensorType(ctx, channel.IDSensorType)
	if err != nil {
		return models.ConversionRule{}, err
	}
	return channel.EffectiveConversion(sensorType), nil
}
