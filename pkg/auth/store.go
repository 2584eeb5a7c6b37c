package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store persists users
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, full_name, password_hash, is_active, is_superuser, date_joined, last_login_at`

// CreateUser inserts user, assigning its id and join date
func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)

	query := `
		INSERT INTO users (id, email, full_name, password_hash, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING date_joined
	`
	err := s.db.QueryRowContext(ctx, query, user.ID, user.Email, user.FullName, user.PasswordHash,
		user.IsActive, user.IsSuperuser).Scan(&user.DateJoined)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

// TouchLastLogin records a successful login
func (s *PostgresStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash,
		&user.IsActive, &user.IsSuperuser, &user.DateJoined, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
