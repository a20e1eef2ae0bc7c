package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"iot-ingest/internal/models"
)

// MappingSpecsRepository 映射规格仓库
// 规格整体作为 JSONB 文档存储, 按设备档案主键读写
type MappingSpecsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMappingSpecsRepository 创建映射规格仓库
func NewMappingSpecsRepository(db *sql.DB, logger *zap.Logger) *MappingSpecsRepository {
	return &MappingSpecsRepository{
		db:     db,
		logger: logger,
	}
}

// GetByProfile 按档案ID读取映射规格
func (r *MappingSpecsRepository) GetByProfile(ctx context.Context, profileID string) (*models.MappingSpecification, error) {
	if profileID == "" {
		return nil, fmt.Errorf("profile_id is required")
	}

	query := `
		SELECT
			profile_id,
			spec,
			enabled,
			created_at,
			updated_at
		FROM mapping_specs
		WHERE profile_id = $1
	`

	var spec models.MappingSpecification
	var specDoc []byte

	err := r.db.QueryRowContext(ctx, query, profileID).Scan(
		&spec.ProfileID,
		&specDoc,
		&spec.Enabled,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("mapping spec not found: profile_id=%s", profileID)
		}
		return nil, fmt.Errorf("failed to get mapping spec: %w", err)
	}

	if err := json.Unmarshal(specDoc, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mapping spec document: %w", err)
	}
	// JSONB 文档内的行级字段以列值为准
	spec.ProfileID = profileID

	return &spec, nil
}

// Save 保存映射规格（upsert）
func (r *MappingSpecsRepository) Save(ctx context.Context, spec *models.MappingSpecification) error {
	if spec == nil {
		return fmt.Errorf("spec is required")
	}
	if spec.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}

	specDoc, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping spec document: %w", err)
	}

	query := `
		INSERT INTO mapping_specs (profile_id, spec, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (profile_id) DO UPDATE SET
			spec = EXCLUDED.spec,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		spec.ProfileID,
		specDoc,
		spec.Enabled,
		spec.CreatedAt,
		spec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mapping spec: %w", err)
	}

	r.logger.Debug("Mapping spec persisted",
		zap.String("profile_id", spec.ProfileID),
	)
	return nil
}

// ListEnabled 列出全部启用的映射规格（用于档案匹配建议）
func (r *MappingSpecsRepository) ListEnabled(ctx context.Context) ([]*models.MappingSpecification, error) {
	query := `
		SELECT
			profile_id,
			spec,
			enabled,
			created_at,
			updated_at
		FROM mapping_specs
		WHERE enabled = TRUE
		ORDER BY profile_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping specs: %w", err)
	}
	defer rows.Close()

	var specs []*models.MappingSpecification
	for rows.Next() {
		var spec models.MappingSpecification
		var specDoc []byte

		if err := rows.Scan(
			&spec.ProfileID,
			&specDoc,
			&spec.Enabled,
			&spec.CreatedAt,
			&spec.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping spec: %w", err)
		}

		profileID := spec.ProfileID
		if err := json.Unmarshal(specDoc, &spec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mapping spec document: %w", err)
		}
		spec.ProfileID = profileID

		specs = append(specs, &spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping specs: %w", err)
	}

	return specs, nil
}

// GetProfileForDevice 查询设备绑定的档案ID
func (r *MappingSpecsRepository) GetProfileForDevice(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("device_id is required")
	}

	query := `
		SELECT profile_id
		FROM devices
		WHERE device_id = $1
	`

	var profileID string
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&profileID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("device not found: device_id=%s", deviceID)
		}
		return "", fmt.Errorf("failed to get profile for device: %w", err)
	}

	return profileID, nil
}
