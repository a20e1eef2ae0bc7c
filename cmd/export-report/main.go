package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"iot-ingest/internal/config"
	"iot-ingest/internal/database"
	"iot-ingest/internal/export"
	"iot-ingest/internal/logger"
	"iot-ingest/internal/models"
	"iot-ingest/internal/repository"
)

// 报警事件与传感器读数的 Excel 报表导出工具
func main() {
	var (
		output    = flag.String("o", "telemetry-report.xlsx", "output file path")
		channelID = flag.String("channel", "", "sensor channel id for readings sheet (optional)")
		days      = flag.Int("days", 7, "how many days back to export")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, "console", "export-report")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	eventsRepo := repository.NewAlertEventsRepository(db, zapLogger)
	logsRepo := repository.NewSensorLogsRepository(db, zapLogger)

	ctx := context.Background()
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -*days)

	events, err := eventsRepo.ListByRange(ctx, from, to)
	if err != nil {
		zapLogger.Fatal("Failed to load alert events", zap.Error(err))
	}

	var readings []*models.SensorLog
	if *channelID != "" {
		readings, err = logsRepo.ListByChannelRange(ctx, *channelID, from, to)
		if err != nil {
			zapLogger.Fatal("Failed to load sensor logs", zap.Error(err))
		}
	}

	data, err := export.GenerateReport(events, readings)
	if err != nil {
		zapLogger.Fatal("Failed to generate report", zap.Error(err))
	}

	if err := os.WriteFile(*output, data, 0o644); err != nil {
		zapLogger.Fatal("Failed to write report file", zap.Error(err))
	}

	zapLogger.Info("Report exported",
		zap.String("file", *output),
		zap.Int("alert_events", len(events)),
		zap.Time("from", from),
		zap.Time("to", to),
	)
}
