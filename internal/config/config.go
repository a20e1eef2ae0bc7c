package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 遥测摄取服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 摄取服务特定配置
	Ingest struct {
		// Redis Streams 配置
		Streams struct {
			Raw    string // 原始遥测数据流，如 "telemetry:raw:stream"
			Alerts string // 报警事件输出流，如 "telemetry:alerts:stream"
		}
		ConsumerGroup string // 消费者组名称
		ConsumerName  string // 消费者名称
		BatchSize     int64  // 批量处理大小
		Source        string // 写入 sensor_logs 的 ingestion_source 标识

		// 绑定编辑器的样本窗口
		SampleWindowSize int64 // 每个设备档案保留的最近样本数

		// 映射规格缓存
		MappingCacheTTL int // 秒
	}

	// MQTT 接入配置
	Bridge struct {
		Enabled bool
		Topic   string // 订阅的遥测主题，如 "devices/+/telemetry"
	}

	// 报警 Webhook 通知
	Notifier struct {
		Enabled    bool
		WebhookURL string
		TimeoutSec int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "iotingest")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "iot-ingest")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	// 摄取服务配置
	cfg.Ingest.Streams.Raw = getEnv("STREAM_RAW", "telemetry:raw:stream")
	cfg.Ingest.Streams.Alerts = getEnv("STREAM_ALERTS", "telemetry:alerts:stream")
	cfg.Ingest.ConsumerGroup = getEnv("CONSUMER_GROUP", "iot-ingest-group")
	cfg.Ingest.ConsumerName = getEnv("CONSUMER_NAME", "iot-ingest-1")
	cfg.Ingest.BatchSize = int64(getEnvInt("BATCH_SIZE", 10))
	cfg.Ingest.Source = getEnv("INGESTION_SOURCE", "stream-ingest")
	cfg.Ingest.SampleWindowSize = int64(getEnvInt("SAMPLE_WINDOW_SIZE", 10))
	cfg.Ingest.MappingCacheTTL = getEnvInt("MAPPING_CACHE_TTL", 60)

	cfg.Bridge.Enabled = getEnv("MQTT_BRIDGE_ENABLED", "false") == "true"
	cfg.Bridge.Topic = getEnv("MQTT_BRIDGE_TOPIC", "devices/+/telemetry")

	cfg.Notifier.Enabled = getEnv("NOTIFIER_ENABLED", "false") == "true"
	cfg.Notifier.WebhookURL = getEnv("NOTIFIER_WEBHOOK_URL", "")
	cfg.Notifier.TimeoutSec = getEnvInt("NOTIFIER_TIMEOUT_SEC", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Notifier.Enabled && cfg.Notifier.WebhookURL == "" {
		return nil, fmt.Errorf("NOTIFIER_WEBHOOK_URL is required when notifier is enabled")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
