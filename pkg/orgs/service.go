package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db    *sql.DB
	hooks []CreateHook
}

// NewPostgresService creates a new PostgresService. hooks run, in order,
// inside every CreateOrganization transaction.
func NewPostgresService(db *sql.DB, hooks ...CreateHook) *PostgresService {
	return &PostgresService{db: db, hooks: hooks}
}

// CreateOrganization inserts an organization and runs the create hooks in
// the same transaction
func (s *PostgresService) CreateOrganization(ctx context.Context, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	org := &Organization{ID: uuid.New(), Name: name}
	query := `
		INSERT INTO organizations (id, name)
		VALUES ($1, $2)
		RETURNING created_at
	`
	if err := tx.QueryRowContext(ctx, query, org.ID, org.Name).Scan(&org.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrOrganizationExists
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	for _, hook := range s.hooks {
		if err := hook(ctx, tx, org); err != nil {
			return nil, fmt.Errorf("organization create hook failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit organization: %w", err)
	}
	return org, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT id, name, created_at FROM organizations WHERE id = $1`

	org := &Organization{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListOrganizations lists every organization, newest first
func (s *PostgresService) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []*Organization
	for rows.Next() {
		org := &Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return out, nil
}

// DeleteOrganization deletes an organization. Child rows cascade.
func (s *PostgresService) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}
