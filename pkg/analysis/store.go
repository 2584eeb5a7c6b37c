package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists analysis jobs
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, orgID uuid.UUID) ([]*Job, error)
	// ClaimJob moves a PENDING job, or a RUNNING job with an expired lease
	// and fewer than maxAttempts attempts, to RUNNING with a fresh lease.
	ClaimJob(ctx context.Context, id uuid.UUID, lease time.Duration, maxAttempts int) (*Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, properties map[string]interface{}) error
	FailJob(ctx context.Context, id uuid.UUID, message string) error
	// ExpireJob fails a RUNNING job only while its lease is still expired
	ExpireJob(ctx context.Context, id uuid.UUID, message string) error
	CountUsage(ctx context.Context, orgID uuid.UUID, since time.Time) (int, error)
	ListStalePending(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
	ListExpiredLeases(ctx context.Context) ([]Expired, error)
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new job store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const jobColumns = `id, organization_id, requested_by, status, spectra, predicted_properties,
	error_message, attempts, lease_expires_at, created_at, updated_at`

// CreateJob inserts a PENDING job
func (s *PostgresStore) CreateJob(ctx context.Context, job *Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	spectra, err := json.Marshal(job.Spectra)
	if err != nil {
		return fmt.Errorf("failed to encode spectra: %w", err)
	}
	job.Status = StatusPending

	query := `
		INSERT INTO analysis_jobs (id, organization_id, requested_by, status, spectra)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		job.ID, job.OrganizationID, nullUUID(job.RequestedBy), job.Status, spectra,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create analysis job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id regardless of organization
func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis job: %w", err)
	}
	return job, nil
}

// ListJobs lists an organization's jobs, newest first
func (s *PostgresStore) ListJobs(ctx context.Context, orgID uuid.UUID) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE organization_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list analysis jobs: %w", err)
	}
	return jobs, nil
}

// ClaimJob is a compare-and-set on status. ErrJobNotFound when the row is
// gone, ErrJobNotClaimable when the condition does not hold.
func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID, lease time.Duration, maxAttempts int) (*Job, error) {
	query := `
		UPDATE analysis_jobs
		SET status = 'RUNNING',
			attempts = attempts + 1,
			lease_expires_at = NOW() + make_interval(secs => $2),
			updated_at = NOW()
		WHERE id = $1
		  AND (status = 'PENDING'
		       OR (status = 'RUNNING' AND lease_expires_at < NOW() AND ($3 <= 0 OR attempts < $3)))
		RETURNING ` + jobColumns
	job, err := scanJob(s.db.QueryRowContext(ctx, query, id, lease.Seconds(), maxAttempts))
	if err == sql.ErrNoRows {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM analysis_jobs WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check analysis job: %w", err)
		}
		if !exists {
			return nil, ErrJobNotFound
		}
		return nil, ErrJobNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim analysis job: %w", err)
	}
	return job, nil
}

// CompleteJob moves a RUNNING job to SUCCESS with its predicted properties
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, properties map[string]interface{}) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to encode predicted properties: %w", err)
	}
	query := `
		UPDATE analysis_jobs
		SET status = 'SUCCESS', predicted_properties = $2, error_message = NULL,
			lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'
	`
	return s.finish(ctx, "complete", query, id, props)
}

// FailJob moves a RUNNING job to FAILED with message
func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE analysis_jobs
		SET status = 'FAILED', error_message = $2, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'
	`
	return s.finish(ctx, "fail", query, id, message)
}

// ExpireJob fails a RUNNING job whose lease is still expired. A job that was
// reclaimed or finished in between is left alone and ErrJobNotRunning
// returned.
func (s *PostgresStore) ExpireJob(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE analysis_jobs
		SET status = 'FAILED', error_message = $2, lease_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING' AND lease_expires_at < NOW()
	`
	return s.finish(ctx, "expire", query, id, message)
}

func (s *PostgresStore) finish(ctx context.Context, op, query string, id uuid.UUID, arg interface{}) error {
	result, err := s.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("failed to %s analysis job: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrJobNotRunning
	}
	return nil
}

// CountUsage counts jobs an organization submitted since a point in time.
// It backs the predictions quota.
func (s *PostgresStore) CountUsage(ctx context.Context, orgID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_jobs WHERE organization_id = $1 AND created_at >= $2`,
		orgID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count analysis jobs: %w", err)
	}
	return n, nil
}

// ListStalePending returns PENDING jobs not touched since olderThan
func (s *PostgresStore) ListStalePending(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM analysis_jobs WHERE status = 'PENDING' AND updated_at < $1 ORDER BY created_at`,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListExpiredLeases returns RUNNING jobs whose lease has run out
func (s *PostgresStore) ListExpiredLeases(ctx context.Context) ([]Expired, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempts FROM analysis_jobs WHERE status = 'RUNNING' AND lease_expires_at < NOW() ORDER BY lease_expires_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}
	defer rows.Close()

	var out []Expired
	for rows.Next() {
		var e Expired
		if err := rows.Scan(&e.ID, &e.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan expired job: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	job := &Job{}
	var requestedBy uuid.NullUUID
	var spectra, props []byte
	var errorMessage sql.NullString
	var lease sql.NullTime
	err := row.Scan(&job.ID, &job.OrganizationID, &requestedBy, &job.Status, &spectra, &props,
		&errorMessage, &job.Attempts, &lease, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if requestedBy.Valid {
		job.RequestedBy = &requestedBy.UUID
	}
	if err := json.Unmarshal(spectra, &job.Spectra); err != nil {
		return nil, fmt.Errorf("failed to decode spectra: %w", err)
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &job.PredictedProperties); err != nil {
			return nil, fmt.Errorf("failed to decode predicted properties: %w", err)
		}
	}
	if errorMessage.Valid {
		job.ErrorMessage = &errorMessage.String
	}
	if lease.Valid {
		job.LeaseExpiresAt = &lease.Time
	}
	return job, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
