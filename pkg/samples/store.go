package samples

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Store persists soil samples
type Store interface {
	CreateSample(ctx context.Context, sample *SoilSample) error
	GetSample(ctx context.Context, id uuid.UUID) (*SoilSample, error)
	ListSamples(ctx context.Context, orgID uuid.UUID) ([]*SoilSample, error)
	UpdateSample(ctx context.Context, id uuid.UUID, req *UpdateSampleRequest) error
	DeleteSample(ctx context.Context, id uuid.UUID) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new sample store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sampleSelect = `
	SELECT s.id, s.organization_id, s.uploaded_by, COALESCE(u.email, ''), s.label, s.latitude, s.longitude,
	       s.depth_cm, s.crop_type, s.ph, s.nitrogen, s.phosphorus, s.potassium, s.metadata,
	       s.created_at, s.updated_at
	FROM soil_samples s
	LEFT JOIN users u ON u.id = s.uploaded_by
`

// CreateSample inserts sample. The row is only written when the uploader is
// a member of the sample's organization; otherwise ErrUploaderNotMember.
func (s *PostgresStore) CreateSample(ctx context.Context, sample *SoilSample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	query := `
		INSERT INTO soil_samples (id, organization_id, uploaded_by, label, latitude, longitude,
			depth_cm, crop_type, ph, nitrogen, phosphorus, potassium, metadata)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		WHERE $3::uuid IS NULL OR EXISTS (
			SELECT 1 FROM memberships WHERE user_id = $3 AND organization_id = $2
		)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		sample.ID, sample.OrganizationID, nullUUID(sample.UploadedBy), sample.Label,
		nullFloat(sample.Latitude), nullFloat(sample.Longitude), sample.DepthCM, sample.CropType,
		sample.PH, nullFloat(sample.Nitrogen), nullFloat(sample.Phosphorus), nullFloat(sample.Potassium),
		[]byte(sample.Metadata),
	).Scan(&sample.CreatedAt, &sample.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrUploaderNotMember
	}
	if err != nil {
		return fmt.Errorf("failed to create soil sample: %w", err)
	}
	return nil
}

// GetSample retrieves a sample by id regardless of organization
func (s *PostgresStore) GetSample(ctx context.Context, id uuid.UUID) (*SoilSample, error) {
	sample, err := scanSample(s.db.QueryRowContext(ctx, sampleSelect+` WHERE s.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get soil sample: %w", err)
	}
	return sample, nil
}

// ListSamples lists an organization's samples, newest first
func (s *PostgresStore) ListSamples(ctx context.Context, orgID uuid.UUID) ([]*SoilSample, error) {
	query := sampleSelect + ` WHERE s.organization_id = $1 ORDER BY s.created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list soil samples: %w", err)
	}
	defer rows.Close()

	var out []*SoilSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan soil sample: %w", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list soil samples: %w", err)
	}
	return out, nil
}

// UpdateSample applies the non-nil fields of req
func (s *PostgresStore) UpdateSample(ctx context.Context, id uuid.UUID, req *UpdateSampleRequest) error {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Label != nil {
		set("label", strings.TrimSpace(*req.Label))
	}
	if req.Latitude != nil {
		set("latitude", *req.Latitude)
	}
	if req.Longitude != nil {
		set("longitude", *req.Longitude)
	}
	if req.DepthCM != nil {
		set("depth_cm", *req.DepthCM)
	}
	if req.CropType != nil {
		set("crop_type", *req.CropType)
	}
	if req.PH != nil {
		set("ph", *req.PH)
	}
	if req.Nitrogen != nil {
		set("nitrogen", *req.Nitrogen)
	}
	if req.Phosphorus != nil {
		set("phosphorus", *req.Phosphorus)
	}
	if req.Potassium != nil {
		set("potassium", *req.Potassium)
	}
	if len(req.Metadata) > 0 {
		set("metadata", []byte(req.Metadata))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE soil_samples SET %s, updated_at = NOW() WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update soil sample: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSampleNotFound
	}
	return nil
}

// DeleteSample deletes a sample
func (s *PostgresStore) DeleteSample(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM soil_samples WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete soil sample: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSampleNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(row scanner) (*SoilSample, error) {
	sample := &SoilSample{}
	var uploader uuid.NullUUID
	var lat, long, nitrogen, phosphorus, potassium sql.NullFloat64
	var metadata []byte
	err := row.Scan(&sample.ID, &sample.OrganizationID, &uploader, &sample.UploadedByEmail, &sample.Label,
		&lat, &long, &sample.DepthCM, &sample.CropType, &sample.PH,
		&nitrogen, &phosphorus, &potassium, &metadata, &sample.CreatedAt, &sample.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if uploader.Valid {
		sample.UploadedBy = &uploader.UUID
	}
	sample.Latitude = floatPtr(lat)
	sample.Longitude = floatPtr(long)
	sample.Nitrogen = floatPtr(nitrogen)
	sample.Phosphorus = floatPtr(phosphorus)
	sample.Potassium = floatPtr(potassium)
	if len(metadata) == 0 {
		sample.Metadata = emptyObject
	} else {
		sample.Metadata = metadata
	}
	return sample, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
