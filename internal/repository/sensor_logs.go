package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// SensorLogsRepository 传感器读数仓库（仅追加）
type SensorLogsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSensorLogsRepository 创建传感器读数仓库
func NewSensorLogsRepository(db *sql.DB, logger *zap.Logger) *SensorLogsRepository {
	return &SensorLogsRepository{
		db:     db,
		logger: logger,
	}
}

// InsertBatch 批量写入一条消息产出的全部读数
// 整批一个事务; (id_sensor_channel, payload_seq) 冲突时跳过,
// 消费端 at-least-once 重投靠这里幂等
func (r *SensorLogsRepository) InsertBatch(ctx context.Context, logs []*models.SensorLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sensor_logs (
			id_sensor_log,
			id_sensor_channel,
			ts,
			value_raw,
			value_engineered,
			quality_flag,
			ingestion_source,
			status_code,
			ingestion_latency_ms,
			payload_seq
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id_sensor_channel, payload_seq) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare sensor log insert: %w", err)
	}
	defer stmt.Close()

	for _, log := range logs {
		var valueRaw, valueEngineered sql.NullFloat64
		if log.ValueRaw != nil {
			valueRaw = sql.NullFloat64{Float64: *log.ValueRaw, Valid: true}
		}
		if log.ValueEngineered != nil {
			valueEngineered = sql.NullFloat64{Float64: *log.ValueEngineered, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			log.IDSensorLog,
			log.IDSensorChannel,
			log.TS,
			valueRaw,
			valueEngineered,
			log.QualityFlag,
			log.IngestionSource,
			log.StatusCode,
			log.IngestionLatencyMs,
			log.PayloadSeq,
		); err != nil {
			return fmt.Errorf("failed to insert sensor log %s: %w", log.IDSensorLog, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sensor logs: %w", err)
	}

	r.logger.Debug("Sensor logs persisted",
		zap.Int("count", len(logs)),
	)
	return nil
}

// ListByChannelRange 按通道和时间范围查询读数（用于报表导出）
func (r *SensorLogsRepository) ListByChannelRange(ctx context.Context, channelID string, from, to time.Time) ([]*models.SensorLog, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}

	query := `
		SELECT
			id_sensor_log,
			id_sensor_channel,
			ts,
			value_raw,
			value_engineered,
			quality_flag,
			ingestion_source,
			status_code,
			ingestion_latency_ms,
			payload_seq
		FROM sensor_logs
		WHERE id_sensor_channel = $1
		  AND ts >= $2
		  AND ts <= $3
		ORDER BY ts
	`

	rows, err := r.db.QueryContext(ctx, query, channelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensor logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SensorLog
	for rows.Next() {
		var log models.SensorLog
		var valueRaw, valueEngineered sql.NullFloat64

		if err := rows.Scan(
			&log.IDSensorLog,
			&log.IDSensorChannel,
			&log.TS,
			&valueRaw,
			&valueEngineered,
			&log.QualityFlag,
			&log.IngestionSource,
			&log.StatusCode,
			&log.IngestionLatencyMs,
			&log.PayloadSeq,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sensor log: %w", err)
		}

		if valueRaw.Valid {
			log.ValueRaw = &valueRaw.Float64
		}
		if valueEngineered.Valid {
			log.ValueEngineered = &valueEngineered.Float64
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor logs: %w", err)
	}

	return logs, nil
}
