package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"iot-ingest/internal/models"
)

// AlertEventHeader 报警事件导出表头
var AlertEventHeader = []string{
	"Event ID",
	"Rule ID",
	"Triggered At",
	"Value",
	"Status",
	"Acknowledged By",
	"Acknowledged At",
	"Cleared By",
	"Cleared At",
	"Note",
}

// SensorLogHeader 传感器读数导出表头
var SensorLogHeader = []string{
	"Log ID",
	"Channel ID",
	"Timestamp",
	"Raw Value",
	"Engineered Value",
	"Quality",
	"Source",
	"Status",
	"Latency (ms)",
	"Payload Seq",
}

const timeLayout = "2006-01-02 15:04:05"

// GenerateReport 生成报警事件 + 读数的 Excel 报表
// 两个 Sheet: Alert Events 与 Sensor Logs
func GenerateReport(events []*models.AlertEvent, logs []*models.SensorLog) ([]byte, error) {
	f := excelize.NewFile()

	eventSheet := "Alert Events"
	if err := f.SetSheetName("Sheet1", eventSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeHeader(f, eventSheet, AlertEventHeader); err != nil {
		return nil, err
	}
	for i, event := range events {
		row := i + 2
		values := []interface{}{
			event.IDAlertEvent,
			event.IDAlertRule,
			event.TriggeredAt.Format(timeLayout),
			event.Value,
			event.Status,
			derefString(event.AcknowledgedBy),
			formatTimePtr(event.AcknowledgedAt),
			derefString(event.ClearedBy),
			formatTimePtr(event.ClearedAt),
			derefString(event.Note),
		}
		if err := writeRow(f, eventSheet, row, values); err != nil {
			return nil, err
		}
	}

	logSheet := "Sensor Logs"
	if _, err := f.NewSheet(logSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, logSheet, SensorLogHeader); err != nil {
		return nil, err
	}
	for i, log := range logs {
		row := i + 2
		values := []interface{}{
			log.IDSensorLog,
			log.IDSensorChannel,
			log.TS.Format(timeLayout),
			derefFloat(log.ValueRaw),
			derefFloat(log.ValueEngineered),
			log.QualityFlag,
			log.IngestionSource,
			log.StatusCode,
			log.IngestionLatencyMs,
			log.PayloadSeq,
		}
		if err := writeRow(f, logSheet, row, values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to build cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write cell: %w", err)
		}
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
