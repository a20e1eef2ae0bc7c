package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// WebhookNotifier 报警事件的 Webhook 通知器
type WebhookNotifier struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// alertNotification Webhook 载荷
type alertNotification struct {
	EventID     string    `json:"event_id"`
	RuleID      string    `json:"rule_id"`
	Status      string    `json:"status"`
	Value       float64   `json:"value"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// NotifyAlert 投递单个报警事件
func (n *WebhookNotifier) NotifyAlert(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}

	notification := alertNotification{
		EventID:     event.IDAlertEvent,
		RuleID:      event.IDAlertRule,
		Status:      event.Status,
		Value:       event.Value,
		TriggeredAt: event.TriggeredAt,
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(notification).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to call alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Alert event notified",
		zap.String("event_id", event.IDAlertEvent),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
