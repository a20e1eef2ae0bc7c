package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// AlertRulesRepository 报警规则仓库
type AlertRulesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRulesRepository 创建报警规则仓库
func NewAlertRulesRepository(db *sql.DB, logger *zap.Logger) *AlertRulesRepository {
	return &AlertRulesRepository{
		db:     db,
		logger: logger,
	}
}

// GetRule 按规则ID读取报警规则
func (r *AlertRulesRepository) GetRule(ctx context.Context, ruleID string) (*models.AlertRule, error) {
	if ruleID == "" {
		return nil, fmt.Errorf("rule_id is required")
	}

	query := `
		SELECT
			id_alert_rule,
			id_sensor_channel,
			rule_type,
			severity,
			params,
			enabled,
			created_at,
			updated_at
		FROM alert_rules
		WHERE id_alert_rule = $1
	`

	rule, err := r.scanRule(r.db.QueryRowContext(ctx, query, ruleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert rule not found: id=%s", ruleID)
		}
		return nil, fmt.Errorf("failed to get alert rule: %w", err)
	}
	return rule, nil
}

// GetEnabledByChannel 列出通道下启用的报警规则（摄入路径按通道评估）
func (r *AlertRulesRepository) GetEnabledByChannel(ctx context.Context, channelID string) ([]*models.AlertRule, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel_id is required")
	}

	query := `
		SELECT
			id_alert_rule,
			id_sensor_channel,
			rule_type,
			severity,
			params,
			enabled,
			created_at,
			updated_at
		FROM alert_rules
		WHERE id_sensor_channel = $1
		  AND enabled = TRUE
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.AlertRule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}

	return rules, nil
}

// CreateRule 新建报警规则
func (r *AlertRulesRepository) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}
	if rule.IDAlertRule == "" {
		return fmt.Errorf("rule_id is required")
	}
	if rule.IDSensorChannel == "" {
		return fmt.Errorf("channel_id is required")
	}
	if rule.RuleType != models.RuleTypeThreshold {
		return fmt.Errorf("unsupported rule_type: %s", rule.RuleType)
	}

	params, err := json.Marshal(rule.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal rule params: %w", err)
	}

	query := `
		INSERT INTO alert_rules (
			id_alert_rule,
			id_sensor_channel,
			rule_type,
			severity,
			params,
			enabled,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.IDAlertRule,
		rule.IDSensorChannel,
		rule.RuleType,
		rule.Severity,
		params,
		rule.Enabled,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	r.logger.Info("Alert rule created",
		zap.String("rule_id", rule.IDAlertRule),
		zap.String("channel_id", rule.IDSensorChannel),
		zap.String("severity", rule.Severity),
	)
	return nil
}

// SetEnabled 启用/停用报警规则
// 停用只拦截新事件, 已打开的事件不受影响
func (r *AlertRulesRepository) SetEnabled(ctx context.Context, ruleID string, enabled bool) error {
	if ruleID == "" {
		return fmt.Errorf("rule_id is required")
	}

	query := `
		UPDATE alert_rules
		SET enabled = $2, updated_at = NOW()
		WHERE id_alert_rule = $1
	`

	result, err := r.db.ExecContext(ctx, query, ruleID, enabled)
	if err != nil {
		return fmt.Errorf("failed to update alert rule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert rule not found: id=%s", ruleID)
	}

	r.logger.Info("Alert rule toggled",
		zap.String("rule_id", ruleID),
		zap.Bool("enabled", enabled),
	)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *AlertRulesRepository) scanRule(row rowScanner) (*models.AlertRule, error) {
	var rule models.AlertRule
	var params []byte

	if err := row.Scan(
		&rule.IDAlertRule,
		&rule.IDSensorChannel,
		&rule.RuleType,
		&rule.Severity,
		&params,
		&rule.Enabled,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &rule.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule params: %w", err)
		}
	}
	return &rule, nil
}
