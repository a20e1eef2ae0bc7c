package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/alert"
	"iot-ingest/internal/models"
)

// AlertEventsRepository 报警事件仓库
// 实现生命周期管理器的 EventStore 接口
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建报警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

const alertEventColumns = `
	id_alert_event,
	id_alert_rule,
	triggered_at,
	value,
	status,
	acknowledged_by,
	acknowledged_at,
	cleared_by,
	cleared_at,
	note,
	created_at,
	updated_at
`

// Create 写入新报警事件
func (r *AlertEventsRepository) Create(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.IDAlertEvent == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.IDAlertRule == "" {
		return fmt.Errorf("rule_id is required")
	}
	if event.TriggeredAt.IsZero() {
		return fmt.Errorf("triggered_at is required")
	}

	query := `
		INSERT INTO alert_events (` + alertEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.IDAlertEvent,
		event.IDAlertRule,
		event.TriggeredAt,
		event.Value,
		event.Status,
		event.AcknowledgedBy,
		event.AcknowledgedAt,
		event.ClearedBy,
		event.ClearedAt,
		event.Note,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	r.logger.Debug("Alert event persisted",
		zap.String("event_id", event.IDAlertEvent),
		zap.String("rule_id", event.IDAlertRule),
	)
	return nil
}

// GetByID 按事件ID读取
func (r *AlertEventsRepository) GetByID(ctx context.Context, eventID string) (*models.AlertEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `
		SELECT ` + alertEventColumns + `
		FROM alert_events
		WHERE id_alert_event = $1
	`

	event, err := r.scanEvent(r.db.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, alert.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get alert event: %w", err)
	}
	return event, nil
}

// GetOpenByRule 返回规则下未清除的事件（open 或 acknowledged）
// 不存在时返回 alert.ErrNotFound
func (r *AlertEventsRepository) GetOpenByRule(ctx context.Context, ruleID string) (*models.AlertEvent, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("rule_id is required")
	}

	query := `
		SELECT ` + alertEventColumns + `
		FROM alert_events
		WHERE id_alert_rule = $1
		  AND status != $2
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	event, err := r.scanEvent(r.db.QueryRowContext(ctx, query, ruleID, models.AlertStatusCleared))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, alert.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get open alert event: %w", err)
	}
	return event, nil
}

// UpdateStatus 更新事件状态及处理字段
func (r *AlertEventsRepository) UpdateStatus(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.IDAlertEvent == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		UPDATE alert_events
		SET
			status = $2,
			acknowledged_by = $3,
			acknowledged_at = $4,
			cleared_by = $5,
			cleared_at = $6,
			note = $7,
			updated_at = $8
		WHERE id_alert_event = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		event.IDAlertEvent,
		event.Status,
		event.AcknowledgedBy,
		event.AcknowledgedAt,
		event.ClearedBy,
		event.ClearedAt,
		event.Note,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return alert.ErrNotFound
	}

	r.logger.Debug("Alert event status updated",
		zap.String("event_id", event.IDAlertEvent),
		zap.String("status", event.Status),
	)
	return nil
}

// ListOpen 查询所有未清除的事件（open 或 acknowledged）
// channelID 非空时按规则所属通道过滤
func (r *AlertEventsRepository) ListOpen(ctx context.Context, channelID string) ([]*models.AlertEvent, error) {
	query := `
		SELECT
			e.id_alert_event,
			e.id_alert_rule,
			e.triggered_at,
			e.value,
			e.status,
			e.acknowledged_by,
			e.acknowledged_at,
			e.cleared_by,
			e.cleared_at,
			e.note,
			e.created_at,
			e.updated_at
		FROM alert_events e
		WHERE e.status != $1
	`
	args := []interface{}{models.AlertStatusCleared}

	if channelID != "" {
		query += `
		  AND e.id_alert_rule IN (
			SELECT id_alert_rule FROM alert_rules WHERE id_sensor_channel = $2
		  )
		`
		args = append(args, channelID)
	}
	query += `
		ORDER BY e.triggered_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open alert events: %w", err)
	}

	return events, nil
}

// ListByRange 按触发时间范围查询事件（用于报表导出）
func (r *AlertEventsRepository) ListByRange(ctx context.Context, from, to time.Time) ([]*models.AlertEvent, error) {
	query := `
		SELECT ` + alertEventColumns + `
		FROM alert_events
		WHERE triggered_at >= $1
		  AND triggered_at <= $2
		ORDER BY triggered_at
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, nil
}

func (r *AlertEventsRepository) scanEvent(row rowScanner) (*models.AlertEvent, error) {
	var event models.AlertEvent
	var acknowledgedBy, clearedBy, note sql.NullString
	var acknowledgedAt, clearedAt sql.NullTime

	if err := row.Scan(
		&event.IDAlertEvent,
		&event.IDAlertRule,
		&event.TriggeredAt,
		&event.Value,
		&event.Status,
		&acknowledgedBy,
		&acknowledgedAt,
		&clearedBy,
		&clearedAt,
		&note,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if acknowledgedBy.Valid {
		event.AcknowledgedBy = &acknowledgedBy.String
	}
	if acknowledgedAt.Valid {
		event.AcknowledgedAt = &acknowledgedAt.Time
	}
	if clearedBy.Valid {
		event.ClearedBy = &clearedBy.String
	}
	if clearedAt.Valid {
		event.ClearedAt = &clearedAt.Time
	}
	if note.Valid {
		event.Note = &note.String
	}
	return &event, nil
}
