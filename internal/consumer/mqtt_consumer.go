package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"iot-ingest/internal/config"
	"iot-ingest/internal/models"
	"iot-ingest/internal/mqtt"
	rediscommon "iot-ingest/internal/redis"
)

// ProfileLookup 设备档案查询接口（样本窗口需要档案ID）
type ProfileLookup interface {
	GetProfileForDevice(ctx context.Context, deviceID string) (string, error)
}

// MQTTConsumer MQTT 接入消费者
// 订阅厂商遥测主题, 从主题提取设备标识,
// 包装到达时间后转投原始遥测流
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqtt.Client
	redisClient *redis.Client
	profiles    ProfileLookup
	logger      *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqtt.Client,
	redisClient *redis.Client,
	profiles ProfileLookup,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		profiles:    profiles,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Bridge.Topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Bridge.Topic),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Bridge.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理一条厂商遥测消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 主题格式: devices/{device_id}/telemetry
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	deviceID := parts[1]

	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		c.logger.Error("Failed to unmarshal MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	ctx := context.Background()

	// 档案ID查不到不拦截消息, 摄入引擎会再次解析
	profileID, err := c.profiles.GetProfileForDevice(ctx, deviceID)
	if err != nil {
		c.logger.Warn("Failed to resolve profile for device",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		profileID = ""
	}

	raw := &models.RawTelemetry{
		DeviceID:  deviceID,
		ProfileID: profileID,
		Payload:   doc,
		Timestamp: time.Now().Unix(),
		Topic:     topic,
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Ingest.Streams.Raw, raw)
	if err != nil {
		c.logger.Error("Failed to publish to Redis Streams",
			zap.String("stream", c.config.Ingest.Streams.Raw),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Info("Published telemetry to raw stream",
		zap.String("device_id", deviceID),
		zap.String("stream_id", streamID),
	)

	return nil
}
