package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

func setupMockMappingSpecsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *MappingSpecsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewMappingSpecsRepository(db, logger)

	return db, mock, repo
}

func sampleSpecDoc(t *testing.T) (string, *models.MappingSpecification) {
	spec := &models.MappingSpecification{
		ProfileID: "profile-1",
		ChannelMappings: map[string]models.ChannelMapping{
			"ch-pressure": {PayloadPath: "data.telemetry.pressure_bar"},
		},
		MetadataMappings: map[string]models.MetadataMapping{
			models.SlotTimestamp: {PayloadPath: "meta.reported_at", InferredType: models.SlotTypeTimestamp},
		},
		Enabled: true,
	}
	doc, err := json.Marshal(spec)
	require.NoError(t, err)
	return string(doc), spec
}

func TestGetByProfile_Success(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	doc, want := sampleSpecDoc(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"profile_id", "spec", "enabled", "created_at", "updated_at",
	}).AddRow("profile-1", doc, true, now, now)

	mock.ExpectQuery(`SELECT`).
		WithArgs("profile-1").
		WillReturnRows(rows)

	spec, err := repo.GetByProfile(context.Background(), "profile-1")

	require.NoError(t, err)
	assert.Equal(t, "profile-1", spec.ProfileID)
	assert.Equal(t, want.ChannelMappings, spec.ChannelMappings)
	assert.Equal(t, want.MetadataMappings, spec.MetadataMappings)
	assert.True(t, spec.Enabled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProfile_NotFound(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("profile-x").
		WillReturnError(sql.ErrNoRows)

	spec, err := repo.GetByProfile(context.Background(), "profile-x")

	assert.Error(t, err)
	assert.Nil(t, spec)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProfile_EmptyProfileID(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	spec, err := repo.GetByProfile(context.Background(), "")

	assert.Error(t, err)
	assert.Nil(t, spec)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMappingSpec_Upsert(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	_, spec := sampleSpecDoc(t)
	spec.CreatedAt = time.Now()
	spec.UpdatedAt = time.Now()

	mock.ExpectExec(`INSERT INTO mapping_specs`).
		WithArgs("profile-1", sqlmock.AnyArg(), true, spec.CreatedAt, spec.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), spec)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEnabled(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	doc, _ := sampleSpecDoc(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"profile_id", "spec", "enabled", "created_at", "updated_at",
	}).
		AddRow("profile-1", doc, true, now, now).
		AddRow("profile-2", doc, true, now, now)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	specs, err := repo.ListEnabled(context.Background())

	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "profile-1", specs[0].ProfileID)
	assert.Equal(t, "profile-2", specs[1].ProfileID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileForDevice(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"profile_id"}).AddRow("profile-1")

	mock.ExpectQuery(`SELECT profile_id`).
		WithArgs("pump-007").
		WillReturnRows(rows)

	profileID, err := repo.GetProfileForDevice(context.Background(), "pump-007")

	require.NoError(t, err)
	assert.Equal(t, "profile-1", profileID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileForDevice_NotFound(t *testing.T) {
	db, mock, repo := setupMockMappingSpecsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT profile_id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetProfileForDevice(context.Background(), "ghost")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}
