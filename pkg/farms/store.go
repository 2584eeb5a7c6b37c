package farms

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/rbac"
)

// Store persists farms and fields. Lookups by id are not organization
// scoped; callers compare the returned organization with the requester's.
type Store interface {
	CreateFarm(ctx context.Context, farm *Farm) error
	GetFarm(ctx context.Context, id uuid.UUID) (*Farm, error)
	ListFarms(ctx context.Context, orgID uuid.UUID, filter rbac.Filter) ([]*Farm, error)
	UpdateFarm(ctx context.Context, id uuid.UUID, req *UpdateFarmRequest) error
	DeleteFarm(ctx context.Context, id uuid.UUID) error

	CreateField(ctx context.Context, field *Field) error
	GetField(ctx context.Context, id uuid.UUID) (*Field, error)
	ListFields(ctx context.Context, orgID uuid.UUID, filter rbac.Filter, farmID *uuid.UUID) ([]*Field, error)
	UpdateField(ctx context.Context, id uuid.UUID, req *UpdateFieldRequest, crop *CropType) error
	DeleteField(ctx context.Context, id uuid.UUID) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new farm store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const farmColumns = `id, organization_id, owner_id, name, location, total_area_hectares, created_at, updated_at`

// CreateFarm inserts farm, filling its id and timestamps
func (s *PostgresStore) CreateFarm(ctx context.Context, farm *Farm) error {
	if farm.ID == uuid.Nil {
		farm.ID = uuid.New()
	}
	query := `
		INSERT INTO farms (id, organization_id, owner_id, name, location, total_area_hectares)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		farm.ID, farm.OrganizationID, nullUUID(farm.OwnerID), farm.Name, farm.Location, farm.TotalAreaHectares,
	).Scan(&farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create farm: %w", err)
	}
	return nil
}

// GetFarm retrieves a farm by id
func (s *PostgresStore) GetFarm(ctx context.Context, id uuid.UUID) (*Farm, error) {
	query := `SELECT ` + farmColumns + ` FROM farms WHERE id = $1`
	farm, err := scanFarm(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrFarmNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get farm: %w", err)
	}
	return farm, nil
}

// ListFarms lists the farms of an organization, narrowed by filter
func (s *PostgresStore) ListFarms(ctx context.Context, orgID uuid.UUID, filter rbac.Filter) ([]*Farm, error) {
	query := `SELECT ` + farmColumns + ` FROM farms WHERE organization_id = $1`
	args := []interface{}{orgID}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += ` AND owner_id = $2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer rows.Close()

	var out []*Farm
	for rows.Next() {
		farm, err := scanFarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		out = append(out, farm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	return out, nil
}

// UpdateFarm applies the non-nil fields of req
func (s *PostgresStore) UpdateFarm(ctx context.Context, id uuid.UUID, req *UpdateFarmRequest) error {
	u := &updater{}
	if req.Name != nil {
		u.set("name", strings.TrimSpace(*req.Name))
	}
	if req.Location != nil {
		u.set("location", *req.Location)
	}
	if req.TotalAreaHectares != nil {
		u.set("total_area_hectares", *req.TotalAreaHectares)
	}
	if u.empty() {
		return nil
	}
	u.set("updated_at", sqlNow{})

	result, err := s.db.ExecContext(ctx, u.query("farms", id), u.args...)
	if err != nil {
		return fmt.Errorf("failed to update farm: %w", err)
	}
	return expectOne(result, ErrFarmNotFound)
}

// DeleteFarm deletes a farm and, by cascade, its fields
func (s *PostgresStore) DeleteFarm(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM farms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete farm: %w", err)
	}
	return expectOne(result, ErrFarmNotFound)
}

const fieldSelect = `
	SELECT fl.id, fl.farm_id, fl.name, fl.crop_type, fl.area_hectares, fl.latitude, fl.longitude, fl.created_at,
	       f.organization_id, f.owner_id
	FROM fields fl
	JOIN farms f ON f.id = fl.farm_id
`

// CreateField inserts field, filling its id and creation time
func (s *PostgresStore) CreateField(ctx context.Context, field *Field) error {
	if field.ID == uuid.Nil {
		field.ID = uuid.New()
	}
	query := `
		INSERT INTO fields (id, farm_id, name, crop_type, area_hectares, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		field.ID, field.FarmID, field.Name, field.CropType, field.AreaHectares,
		nullFloat(field.Latitude), nullFloat(field.Longitude),
	).Scan(&field.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create field: %w", err)
	}
	return nil
}

// GetField retrieves a field with its farm's organization and owner
func (s *PostgresStore) GetField(ctx context.Context, id uuid.UUID) (*Field, error) {
	field, err := scanField(s.db.QueryRowContext(ctx, fieldSelect+` WHERE fl.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrFieldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return field, nil
}

// ListFields lists the fields of an organization's farms. filter narrows by
// farm owner; farmID, when set, restricts to one farm.
func (s *PostgresStore) ListFields(ctx context.Context, orgID uuid.UUID, filter rbac.Filter, farmID *uuid.UUID) ([]*Field, error) {
	query := fieldSelect + ` WHERE f.organization_id = $1`
	args := []interface{}{orgID}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += fmt.Sprintf(` AND f.owner_id = $%d`, len(args))
	}
	if farmID != nil {
		args = append(args, *farmID)
		query += fmt.Sprintf(` AND fl.farm_id = $%d`, len(args))
	}
	query += ` ORDER BY fl.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var out []*Field
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		out = append(out, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return out, nil
}

// UpdateField applies the non-nil fields of req. crop is the parsed
// crop_type, if one was given.
func (s *PostgresStore) UpdateField(ctx context.Context, id uuid.UUID, req *UpdateFieldRequest, crop *CropType) error {
	u := &updater{}
	if req.Name != nil {
		u.set("name", strings.TrimSpace(*req.Name))
	}
	if crop != nil {
		u.set("crop_type", *crop)
	}
	if req.AreaHectares != nil {
		u.set("area_hectares", *req.AreaHectares)
	}
	if req.Latitude != nil {
		u.set("latitude", *req.Latitude)
	}
	if req.Longitude != nil {
		u.set("longitude", *req.Longitude)
	}
	if u.empty() {
		return nil
	}

	result, err := s.db.ExecContext(ctx, u.query("fields", id), u.args...)
	if err != nil {
		return fmt.Errorf("failed to update field: %w", err)
	}
	return expectOne(result, ErrFieldNotFound)
}

// DeleteField deletes a field
func (s *PostgresStore) DeleteField(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM fields WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	return expectOne(result, ErrFieldNotFound)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFarm(row scanner) (*Farm, error) {
	farm := &Farm{}
	var owner uuid.NullUUID
	err := row.Scan(&farm.ID, &farm.OrganizationID, &owner, &farm.Name, &farm.Location,
		&farm.TotalAreaHectares, &farm.CreatedAt, &farm.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		farm.OwnerID = &owner.UUID
	}
	return farm, nil
}

func scanField(row scanner) (*Field, error) {
	field := &Field{}
	var lat, long sql.NullFloat64
	var owner uuid.NullUUID
	err := row.Scan(&field.ID, &field.FarmID, &field.Name, &field.CropType, &field.AreaHectares,
		&lat, &long, &field.CreatedAt, &field.OrganizationID, &owner)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		field.Latitude = &lat.Float64
	}
	if long.Valid {
		field.Longitude = &long.Float64
	}
	if owner.Valid {
		field.FarmOwnerID = &owner.UUID
	}
	return field, nil
}

// sqlNow renders as NOW() instead of a placeholder
type sqlNow struct{}

// updater builds an UPDATE ... SET list with numbered placeholders
type updater struct {
	sets []string
	args []interface{}
}

func (u *updater) set(column string, value interface{}) {
	if _, ok := value.(sqlNow); ok {
		u.sets = append(u.sets, column+" = NOW()")
		return
	}
	u.args = append(u.args, value)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", column, len(u.args)))
}

func (u *updater) empty() bool {
	return len(u.sets) == 0
}

func (u *updater) query(table string, id uuid.UUID) string {
	u.args = append(u.args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(u.sets, ", "), len(u.args))
}

func expectOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
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
