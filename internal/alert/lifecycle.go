package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// ErrNotFound 表示事件不存在
var ErrNotFound = errors.New("alert event not found")

// ErrInvalidTransition 表示状态迁移不合法
var ErrInvalidTransition = errors.New("invalid alert status transition")

// EventStore 报警事件的持久化接口（通常由 repository 实现）
type EventStore interface {
	Create(ctx context.Context, event *models.AlertEvent) error
	GetByID(ctx context.Context, eventID string) (*models.AlertEvent, error)
	// GetOpenByRule 返回规则下未清除的事件, 不存在时返回 ErrNotFound
	GetOpenByRule(ctx context.Context, ruleID string) (*models.AlertEvent, error)
	UpdateStatus(ctx context.Context, event *models.AlertEvent) error
}

// Manager 报警事件生命周期管理器
// 状态机: open -> acknowledged -> cleared, open 可直接 cleared, cleared 为终态
// 同一规则的创建与状态迁移串行化, 不同规则互不阻塞
type Manager struct {
	store  EventStore
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // 按规则ID
}

// NewManager 创建生命周期管理器
func NewManager(store EventStore, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) ruleLock(ruleID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[ruleID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[ruleID] = lock
	}
	return lock
}

// Open 为触发的规则打开报警事件
// 事件建模为持续中的告警: 同一规则已有未清除事件时返回该事件, 不重复创建
func (m *Manager) Open(ctx context.Context, rule *models.AlertRule, value float64, triggeredAt time.Time) (*models.AlertEvent, error) {
	if rule == nil {
		return nil, fmt.Errorf("rule is required")
	}
	if !rule.Enabled {
		return nil, fmt.Errorf("rule %s is disabled", rule.IDAlertRule)
	}

	lock := m.ruleLock(rule.IDAlertRule)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.store.GetOpenByRule(ctx, rule.IDAlertRule)
	if err == nil {
		m.logger.Debug("Alert already open for rule, skipping duplicate",
			zap.String("rule_id", rule.IDAlertRule),
			zap.String("event_id", existing.IDAlertEvent),
		)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check open alert for rule %s: %w", rule.IDAlertRule, err)
	}

	now := time.Now().UTC()
	event := &models.AlertEvent{
		IDAlertEvent: uuid.New().String(),
		IDAlertRule:  rule.IDAlertRule,
		TriggeredAt:  triggeredAt.UTC(),
		Value:        value,
		Status:       models.AlertStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create alert event: %w", err)
	}

	m.logger.Info("Alert event opened",
		zap.String("event_id", event.IDAlertEvent),
		zap.String("rule_id", rule.IDAlertRule),
		zap.String("severity", rule.Severity),
		zap.Float64("value", value),
	)
	return event, nil
}

// Acknowledge 确认事件, 已确认的事件可重复确认并更新确认人/时间, cleared 拒绝
func (m *Manager) Acknowledge(ctx context.Context, eventID, by string, note *string) (*models.AlertEvent, error) {
	if by == "" {
		return nil, fmt.Errorf("acknowledging user is required")
	}

	event, err := m.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	lock := m.ruleLock(event.IDAlertRule)
	lock.Lock()
	defer lock.Unlock()

	// 持锁后重读, 避免并发迁移下基于过期状态判定
	event, err = m.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.Status == models.AlertStatusCleared {
		return nil, fmt.Errorf("%w: cannot acknowledge cleared event %s", ErrInvalidTransition, eventID)
	}

	now := time.Now().UTC()
	event.Status = models.AlertStatusAcknowledged
	event.AcknowledgedBy = &by
	event.AcknowledgedAt = &now
	if note != nil {
		event.Note = note
	}
	event.UpdatedAt = now

	if err := m.store.UpdateStatus(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert event: %w", err)
	}

	m.logger.Info("Alert event acknowledged",
		zap.String("event_id", eventID),
		zap.String("acknowledged_by", by),
	)
	return event, nil
}

// Clear 清除事件（open 或 acknowledged 均可, cleared 为终态）
func (m *Manager) Clear(ctx context.Context, eventID, by string, note *string) (*models.AlertEvent, error) {
	if by == "" {
		return nil, fmt.Errorf("clearing user is required")
	}

	event, err := m.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	lock := m.ruleLock(event.IDAlertRule)
	lock.Lock()
	defer lock.Unlock()

	event, err = m.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if event.Status == models.AlertStatusCleared {
		return nil, fmt.Errorf("%w: event %s is already cleared", ErrInvalidTransition, eventID)
	}

	now := time.Now().UTC()
	event.Status = models.AlertStatusCleared
	event.ClearedBy = &by
	event.ClearedAt = &now
	if note != nil {
		event.Note = note
	}
	event.UpdatedAt = now

	if err := m.store.UpdateStatus(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to clear alert event: %w", err)
	}

	m.logger.Info("Alert event cleared",
		zap.String("event_id", eventID),
		zap.String("cleared_by", by),
	)
	return event, nil
}
