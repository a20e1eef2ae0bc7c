package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"iot-ingest/internal/config"
	"iot-ingest/internal/ingest"
	"iot-ingest/internal/mapping"
	"iot-ingest/internal/models"
	rediscommon "iot-ingest/internal/redis"
)

// LogStore 读数持久化接口
type LogStore interface {
	InsertBatch(ctx context.Context, logs []*models.SensorLog) error
}

// Notifier 报警事件通知接口
type Notifier interface {
	NotifyAlert(ctx context.Context, event *models.AlertEvent) error
}

// StreamConsumer Redis Streams 消费者
// 读取原始遥测流, 交给摄入引擎处理, 落库后按消息确认
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	engine      *ingest.Engine
	logStore    LogStore
	samples     *mapping.SampleWindow
	notifier    Notifier
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	engine *ingest.Engine,
	logStore LogStore,
	samples *mapping.SampleWindow,
	notifier Notifier,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		engine:      engine,
		logStore:    logStore,
		samples:     samples,
		notifier:    notifier,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	rawStream := c.config.Ingest.Streams.Raw

	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, rawStream, c.config.Ingest.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", rawStream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", rawStream),
		zap.String("consumer_group", c.config.Ingest.ConsumerGroup),
		zap.String("consumer_name", c.config.Ingest.ConsumerName),
	)

	// 启动消费循环
	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, rawStream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.String("stream", rawStream),
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 消费一批消息
func (c *StreamConsumer) consumeStream(ctx context.Context, streamName string) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		streamName,
		c.config.Ingest.ConsumerGroup,
		c.config.Ingest.ConsumerName,
		c.config.Ingest.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", streamName, err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, &msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream", streamName),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 不确认失败的消息，留给 pending 列表重投
			continue
		}

		if err := rediscommon.AckMessage(ctx, c.redisClient, streamName, c.config.Ingest.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg *rediscommon.StreamMessage) error {
	raw, err := models.ParseRawTelemetry(msg.ID, msg.Stream, msg.Values)
	if err != nil {
		return fmt.Errorf("failed to parse raw telemetry: %w", err)
	}
	if raw.DeviceID == "" {
		return fmt.Errorf("raw telemetry missing device_id: message_id=%s", msg.ID)
	}

	arrivedAt := time.Now().UTC()
	if raw.Timestamp > 0 {
		arrivedAt = time.Unix(raw.Timestamp, 0).UTC()
	}

	readings, events, err := c.engine.IngestTelemetry(ctx, raw.DeviceID, raw.Payload, arrivedAt, msg.ID)
	if err != nil {
		return fmt.Errorf("failed to ingest telemetry: %w", err)
	}

	if err := c.logStore.InsertBatch(ctx, readings); err != nil {
		return fmt.Errorf("failed to persist readings: %w", err)
	}

	// 样本窗口与通知是尽力而为, 失败不影响消息确认
	if c.samples != nil && raw.ProfileID != "" {
		if err := c.samples.Push(ctx, raw.ProfileID, raw.Payload); err != nil {
			c.logger.Warn("Failed to record sample payload",
				zap.String("profile_id", raw.ProfileID),
				zap.Error(err),
			)
		}
	}

	for _, event := range events {
		if _, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Ingest.Streams.Alerts, event); err != nil {
			c.logger.Warn("Failed to publish alert event to output stream",
				zap.String("event_id", event.IDAlertEvent),
				zap.Error(err),
			)
		}
		if c.notifier != nil {
			if err := c.notifier.NotifyAlert(ctx, event); err != nil {
				c.logger.Warn("Failed to notify alert event",
					zap.String("event_id", event.IDAlertEvent),
					zap.Error(err),
				)
			}
		}
	}

	c.logger.Info("Processed telemetry payload",
		zap.String("device_id", raw.DeviceID),
		zap.String("message_id", msg.ID),
		zap.Int("readings", len(readings)),
		zap.Int("alert_events", len(events)),
	)

	return nil
}
