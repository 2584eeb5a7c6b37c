package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/agronomy/pkg/rbac"
)

const foreignKeyViolation = "23503"

// ListMembers retrieves all members of an organization
func (s *PostgresService) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at, u.email
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// GetMember retrieves a specific member
func (s *PostgresService) GetMember(ctx context.Context, orgID, userID uuid.UUID) (*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	m := &Membership{}
	err := s.db.QueryRowContext(ctx, query, orgID, userID).
		Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembershipsForUser returns every membership of userID with the
// organization name attached
func (s *PostgresService) ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at, o.name
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt, &m.OrganizationName); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return out, nil
}

// AddMember adds a user to an organization. A second membership for the
// same pair is rejected with ErrMemberExists.
func (s *PostgresService) AddMember(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) (*Membership, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	m := &Membership{ID: uuid.New(), UserID: userID, OrganizationID: orgID, Role: role}
	query := `
		INSERT INTO memberships (id, user_id, organization_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, organization_id) DO NOTHING
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query, m.ID, userID, orgID, role).Scan(&m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberExists
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, fmt.Errorf("unknown user or organization: %w", err)
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return m, nil
}

// UpdateMemberRole updates a member's role
func (s *PostgresService) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	query := `UPDATE memberships SET role = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, role, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return expectOneRow(result)
}

// RemoveMember removes a member from an organization
func (s *PostgresService) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	query := `DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}
