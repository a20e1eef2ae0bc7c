package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"iot-ingest/internal/models"
)

func TestGenerateReport(t *testing.T) {
	by := "operator-1"
	ackedAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	raw := 4.2
	engineered := 9.25

	events := []*models.AlertEvent{
		{
			IDAlertEvent:   "event-1",
			IDAlertRule:    "rule-1",
			TriggeredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Value:          5.6,
			Status:         models.AlertStatusAcknowledged,
			AcknowledgedBy: &by,
			AcknowledgedAt: &ackedAt,
		},
		{
			IDAlertEvent: "event-2",
			IDAlertRule:  "rule-2",
			TriggeredAt:  time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
			Value:        -1.0,
			Status:       models.AlertStatusOpen,
		},
	}
	logs := []*models.SensorLog{
		{
			IDSensorLog:        "log-1",
			IDSensorChannel:    "ch-pressure",
			TS:                 time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ValueRaw:           &raw,
			ValueEngineered:    &engineered,
			QualityFlag:        models.QualityGood,
			IngestionSource:    "stream-ingest",
			StatusCode:         "warning",
			IngestionLatencyMs: 12,
			PayloadSeq:         "seq-1",
		},
		{
			IDSensorLog:     "log-2",
			IDSensorChannel: "ch-flow",
			TS:              time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
			QualityFlag:     models.QualityBad,
			IngestionSource: "stream-ingest",
			PayloadSeq:      "seq-1",
		},
	}

	data, err := GenerateReport(events, logs)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	eventRows, err := f.GetRows("Alert Events")
	require.NoError(t, err)
	require.Len(t, eventRows, 3)
	assert.Equal(t, AlertEventHeader, eventRows[0])
	assert.Equal(t, "event-1", eventRows[1][0])
	assert.Equal(t, "acknowledged", eventRows[1][4])
	assert.Equal(t, "operator-1", eventRows[1][5])
	assert.Equal(t, "event-2", eventRows[2][0])

	logRows, err := f.GetRows("Sensor Logs")
	require.NoError(t, err)
	require.Len(t, logRows, 3)
	assert.Equal(t, SensorLogHeader, logRows[0])
	assert.Equal(t, "log-1", logRows[1][0])
	assert.Equal(t, "good", logRows[1][5])
	assert.Equal(t, "log-2", logRows[2][0])
	assert.Equal(t, "bad", logRows[2][5])
}

func TestGenerateReport_Empty(t *testing.T) {
	data, err := GenerateReport(nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	eventRows, err := f.GetRows("Alert Events")
	require.NoError(t, err)
	require.Len(t, eventRows, 1)
	assert.Equal(t, AlertEventHeader, eventRows[0])
}
