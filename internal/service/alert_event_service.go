package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/alert"
	"iot-ingest/internal/models"
	"iot-ingest/internal/repository"
)

// AlertEventService 报警事件服务层
// 职责：
// 1. 业务规则验证
// 2. 业务编排（生命周期管理器 + Repository）
type AlertEventService struct {
	manager    *alert.Manager
	eventsRepo *repository.AlertEventsRepository
	logger     *zap.Logger
}

// NewAlertEventService 创建报警事件服务
func NewAlertEventService(
	manager *alert.Manager,
	eventsRepo *repository.AlertEventsRepository,
	logger *zap.Logger,
) *AlertEventService {
	return &AlertEventService{
		manager:    manager,
		eventsRepo: eventsRepo,
		logger:     logger,
	}
}

// GetAlertEvent 获取单个报警事件
func (s *AlertEventService) GetAlertEvent(ctx context.Context, eventID string) (*models.AlertEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	event, err := s.eventsRepo.GetByID(ctx, eventID)
	if err != nil {
		s.logger.Error("Failed to get alert event",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return nil, err
	}
	return event, nil
}

// ListAlertEvents 按触发时间范围查询报警事件
func (s *AlertEventService) ListAlertEvents(ctx context.Context, from, to time.Time) ([]*models.AlertEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid time range: to before from")
	}

	events, err := s.eventsRepo.ListByRange(ctx, from, to)
	if err != nil {
		s.logger.Error("Failed to list alert events", zap.Error(err))
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	return events, nil
}

// ListOpenAlertEvents 查询未清除的报警事件, channelID 非空时按通道过滤
func (s *AlertEventService) ListOpenAlertEvents(ctx context.Context, channelID string) ([]*models.AlertEvent, error) {
	events, err := s.eventsRepo.ListOpen(ctx, channelID)
	if err != nil {
		s.logger.Error("Failed to list open alert events",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to list open alert events: %w", err)
	}
	return events, nil
}

// AcknowledgeAlertEvent 确认报警事件
// 业务规则：
// - event_id 和 by 必填
// - cleared 状态不可确认, 重复确认会更新确认人与时间
func (s *AlertEventService) AcknowledgeAlertEvent(ctx context.Context, eventID, by string, note *string) (*models.AlertEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}
	if by == "" {
		return nil, fmt.Errorf("acknowledging user is required")
	}

	event, err := s.manager.Acknowledge(ctx, eventID, by, note)
	if err != nil {
		s.logger.Error("Failed to acknowledge alert event",
			zap.String("event_id", eventID),
			zap.String("by", by),
			zap.Error(err),
		)
		return nil, err
	}
	return event, nil
}

// ClearAlertEvent 清除报警事件
// 业务规则：
// - event_id 和 by 必填
// - cleared 为终态, 不可再次操作
func (s *AlertEventService) ClearAlertEvent(ctx context.Context, eventID, by string, note *string) (*models.AlertEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}
	if by == "" {
		return nil, fmt.Errorf("clearing user is required")
	}

	event, err := s.manager.Clear(ctx, eventID, by, note)
	if err != nil {
		s.logger.Error("Failed to clear alert event",
			zap.String("event_id", eventID),
			zap.String("by", by),
			zap.Error(err),
		)
		return nil, err
	}
	return event, nil
}
