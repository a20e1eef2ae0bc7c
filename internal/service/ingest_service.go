package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"iot-ingest/internal/alert"
	"iot-ingest/internal/config"
	"iot-ingest/internal/consumer"
	"iot-ingest/internal/database"
	"iot-ingest/internal/ingest"
	"iot-ingest/internal/mapping"
	"iot-ingest/internal/mqtt"
	"iot-ingest/internal/notifier"
	rediscommon "iot-ingest/internal/redis"
	"iot-ingest/internal/repository"
)

// IngestService 遥测摄取服务
// 组装仓库、映射缓存、摄入引擎与消费者
type IngestService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client

	mappingRepo  *repository.MappingSpecsRepository
	channelsRepo *repository.SensorChannelsRepository
	logsRepo     *repository.SensorLogsRepository
	rulesRepo    *repository.AlertRulesRepository
	eventsRepo   *repository.AlertEventsRepository

	mappingCache *mapping.Cache
	sampleWindow *mapping.SampleWindow
	alertManager *alert.Manager
	engine       *ingest.Engine

	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer
}

// NewIngestService 创建遥测摄取服务
func NewIngestService(cfg *config.Config, logger *zap.Logger) (*IngestService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 创建Repository
	mappingRepo := repository.NewMappingSpecsRepository(db, logger)
	channelsRepo := repository.NewSensorChannelsRepository(db, logger)
	logsRepo := repository.NewSensorLogsRepository(db, logger)
	rulesRepo := repository.NewAlertRulesRepository(db, logger)
	eventsRepo := repository.NewAlertEventsRepository(db, logger)

	// 映射规格缓存 + 样本窗口
	kv := mapping.NewRedisKVStore(redisClient)
	mappingCache := mapping.NewCache(kv, mappingRepo, time.Duration(cfg.Ingest.MappingCacheTTL)*time.Second, logger)
	sampleWindow := mapping.NewSampleWindow(redisClient, int(cfg.Ingest.SampleWindowSize), logger)

	// 报警生命周期 + 摄入引擎
	alertManager := alert.NewManager(eventsRepo, logger)
	engine := ingest.NewEngine(
		mappingRepo,
		mappingCache,
		channelsRepo,
		rulesRepo,
		alertManager,
		cfg.Ingest.Source,
		logger,
	)

	// Webhook 通知器（可选）
	var alertNotifier consumer.Notifier
	if cfg.Notifier.Enabled {
		alertNotifier = notifier.NewWebhookNotifier(
			cfg.Notifier.WebhookURL,
			time.Duration(cfg.Notifier.TimeoutSec)*time.Second,
			logger,
		)
	}

	// 创建Consumer
	streamConsumer := consumer.NewStreamConsumer(
		cfg,
		redisClient,
		engine,
		logsRepo,
		sampleWindow,
		alertNotifier,
		logger,
	)

	svc := &IngestService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redisClient:    redisClient,
		mappingRepo:    mappingRepo,
		channelsRepo:   channelsRepo,
		logsRepo:       logsRepo,
		rulesRepo:      rulesRepo,
		eventsRepo:     eventsRepo,
		mappingCache:   mappingCache,
		sampleWindow:   sampleWindow,
		alertManager:   alertManager,
		engine:         engine,
		streamConsumer: streamConsumer,
	}

	// MQTT 接入（可选）
	if cfg.Bridge.Enabled {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		svc.mqttClient = mqttClient
		svc.mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, mappingRepo, logger)
	}

	return svc, nil
}

// Editor 返回绑定编辑器（供管理入口使用）
func (s *IngestService) Editor() *mapping.Editor {
	return mapping.NewEditor(s.mappingRepo, s.mappingCache, s.channelFormulaLookup, s.logger)
}

// AlertEvents 返回报警事件服务
func (s *IngestService) AlertEvents() *AlertEventService {
	return NewAlertEventService(s.alertManager, s.eventsRepo, s.logger)
}

func (s *IngestService) channelFormulaLookup(ctx context.Context, channelID string) (string, error) {
	rule, err := s.channelsRepo.GetEffectiveConversion(ctx, channelID)
	if err != nil {
		return "", err
	}
	return rule.Formula, nil
}

// Start 启动服务
func (s *IngestService) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry ingest service components")

	if s.mqttConsumer != nil {
		go func() {
			if err := s.mqttConsumer.Start(ctx); err != nil {
				s.logger.Error("MQTT consumer stopped with error", zap.Error(err))
			}
		}()
	}

	// 启动Stream消费者（阻塞直到 ctx 取消）
	if err := s.streamConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream consumer: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *IngestService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping telemetry ingest service")

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	// 关闭数据库
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	s.logger.Info("Telemetry ingest service stopped")
	return nil
}
