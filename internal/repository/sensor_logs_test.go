package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

func setupMockSensorLogsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SensorLogsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewSensorLogsRepository(db, logger)

	return db, mock, repo
}

func goodReading(channelID string) *models.SensorLog {
	raw := 4.2
	engineered := 9.25
	return &models.SensorLog{
		IDSensorLog:        uuid.New().String(),
		IDSensorChannel:    channelID,
		TS:                 time.Now(),
		ValueRaw:           &raw,
		ValueEngineered:    &engineered,
		QualityFlag:        models.QualityGood,
		IngestionSource:    "stream-ingest",
		StatusCode:         "safe",
		IngestionLatencyMs: 12,
		PayloadSeq:         "1700000000000-0",
	}
}

func TestInsertBatch_Success(t *testing.T) {
	db, mock, repo := setupMockSensorLogsDB(t)
	defer db.Close()

	logs := []*models.SensorLog{
		goodReading("ch-pressure"),
		goodReading("ch-temp"),
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO sensor_logs`)
	for range logs {
		mock.ExpectExec(`INSERT INTO sensor_logs`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.InsertBatch(context.Background(), logs)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_BadReadingHasNullValues(t *testing.T) {
	db, mock, repo := setupMockSensorLogsDB(t)
	defer db.Close()

	log := &models.SensorLog{
		IDSensorLog:     uuid.New().String(),
		IDSensorChannel: "ch-flow",
		TS:              time.Now(),
		QualityFlag:     models.QualityBad,
		IngestionSource: "stream-ingest",
		PayloadSeq:      "1700000000000-0",
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO sensor_logs`)
	mock.ExpectExec(`INSERT INTO sensor_logs`).
		WithArgs(
			log.IDSensorLog, "ch-flow", log.TS, nil, nil,
			models.QualityBad, "stream-ingest", "", int64(0), "1700000000000-0",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertBatch(context.Background(), []*models.SensorLog{log})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_RollsBackOnFailure(t *testing.T) {
	db, mock, repo := setupMockSensorLogsDB(t)
	defer db.Close()

	logs := []*models.SensorLog{
		goodReading("ch-pressure"),
		goodReading("ch-temp"),
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO sensor_logs`)
	mock.ExpectExec(`INSERT INTO sensor_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sensor_logs`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), logs)

	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_Empty(t *testing.T) {
	db, mock, repo := setupMockSensorLogsDB(t)
	defer db.Close()

	err := repo.InsertBatch(context.Background(), nil)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByChannelRange(t *testing.T) {
	db, mock, repo := setupMockSensorLogsDB(t)
	defer db.Close()

	from := time.Now().Add(-time.Hour)
	to := time.Now()

	rows := sqlmock.NewRows([]string{
		"id_sensor_log", "id_sensor_channel", "ts", "value_raw", "value_engineered",
		"quality_flag", "ingestion_source", "status_code", "ingestion_latency_ms", "payload_seq",
	}).
		AddRow(uuid.New().String(), "ch-pressure", from.Add(time.Minute), 4.2, 9.25,
			models.QualityGood, "stream-ingest", "safe", 12, "seq-1").
		AddRow(uuid.New().String(), "ch-pressure", from.Add(2*time.Minute), nil, nil,
			models.QualityBad, "stream-ingest", "", 8, "seq-2")

	mock.ExpectQuery(`SELECT`).
		WithArgs("ch-pressure", from, to).
		WillReturnRows(rows)

	logs, err := repo.ListByChannelRange(context.Background(), "ch-pressure", from, to)

	require.NoError(t, err)
	require.Len(t, logs, 2)

	require.NotNil(t, logs[0].ValueEngineered)
	assert.Equal(t, 9.25, *logs[0].ValueEngineered)
	assert.Equal(t, models.QualityGood, logs[0].QualityFlag)

	assert.Nil(t, logs[1].ValueRaw)
	assert.Nil(t, logs[1].ValueEngineered)
	assert.Equal(t, models.QualityBad, logs[1].QualityFlag)

	require.NoError(t, mock.ExpectationsWereMet())
}
