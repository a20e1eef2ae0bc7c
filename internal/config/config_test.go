package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Password)
	assert.Equal(t, "iotingest", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "telemetry:raw:stream", cfg.Ingest.Streams.Raw)
	assert.Equal(t, "telemetry:alerts:stream", cfg.Ingest.Streams.Alerts)
	assert.Equal(t, "iot-ingest-group", cfg.Ingest.ConsumerGroup)
	assert.Equal(t, "iot-ingest-1", cfg.Ingest.ConsumerName)
	assert.Equal(t, int64(10), cfg.Ingest.BatchSize)
	assert.Equal(t, "stream-ingest", cfg.Ingest.Source)
	assert.Equal(t, int64(10), cfg.Ingest.SampleWindowSize)
	assert.Equal(t, 60, cfg.Ingest.MappingCacheTTL)

	assert.False(t, cfg.Bridge.Enabled)
	assert.False(t, cfg.Notifier.Enabled)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// 设置环境变量
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_USER", "test-user")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("STREAM_RAW", "test:raw")
	os.Setenv("CONSUMER_GROUP", "test-group")
	os.Setenv("SAMPLE_WINDOW_SIZE", "5")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证环境变量覆盖
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-user", cfg.Database.User)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "test:raw", cfg.Ingest.Streams.Raw)
	assert.Equal(t, "test-group", cfg.Ingest.ConsumerGroup)
	assert.Equal(t, int64(5), cfg.Ingest.SampleWindowSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 清理环境变量
	os.Clearenv()
}

func TestLoad_NotifierRequiresURL(t *testing.T) {
	os.Clearenv()
	os.Setenv("NOTIFIER_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)

	os.Clearenv()
}

func TestGetEnv(t *testing.T) {
	// 测试默认值
	os.Clearenv()
	value := getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "default-value", value)

	// 测试环境变量存在
	os.Setenv("TEST_KEY", "env-value")
	value = getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "env-value", value)

	// 清理
	os.Unsetenv("TEST_KEY")
}
