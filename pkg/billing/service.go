package billing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/orgs"
)

// Store persists subscriptions
type Store interface {
	GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error)
	UpdateSubscription(ctx context.Context, orgID uuid.UUID, req *UpdateSubscriptionRequest) (*Subscription, error)
	CreateDefaultSubscription(ctx context.Context, orgID uuid.UUID) (bool, error)
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresService implements Store using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new billing service
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const subscriptionColumns = `id, organization_id, plan, status, current_period_start, current_period_end, created_at, updated_at`

// GetSubscription gets the subscription for an organization
func (s *PostgresService) GetSubscription(ctx context.Context, orgID uuid.UUID) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE organization_id = $1`

	sub := &Subscription{}
	var periodStart, periodEnd sql.NullTime
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&sub.ID, &sub.OrganizationID, &sub.Plan, &sub.Status,
		&periodStart, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return sub, nil
}

// UpdateSubscription applies the non-nil fields of req
func (s *PostgresService) UpdateSubscription(ctx context.Context, orgID uuid.UUID, req *UpdateSubscriptionRequest) (*Subscription, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Plan != nil {
		add("plan", *req.Plan)
	}
	if req.Status != nil {
		add("status", *req.Status)
	}
	if req.CurrentPeriodStart != nil {
		add("current_period_start", *req.CurrentPeriodStart)
	}
	if req.CurrentPeriodEnd != nil {
		add("current_period_end", *req.CurrentPeriodEnd)
	}
	if len(sets) == 0 {
		return s.GetSubscription(ctx, orgID)
	}

	args = append(args, orgID)
	query := fmt.Sprintf(`UPDATE subscriptions SET %s, updated_at = NOW() WHERE organization_id = $%d`,
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return nil, ErrSubscriptionNotFound
	}
	return s.GetSubscription(ctx, orgID)
}

// CreateDefaultSubscription creates the FREE/ACTIVE subscription if the
// organization has none. It reports whether a row was inserted.
func (s *PostgresService) CreateDefaultSubscription(ctx context.Context, orgID uuid.UUID) (bool, error) {
	return createDefault(ctx, s.db, orgID)
}

// DefaultSubscriptionHook provisions the default subscription inside the
// organization create transaction
func DefaultSubscriptionHook() orgs.CreateHook {
	return func(ctx context.Context, tx *sql.Tx, org *orgs.Organization) error {
		_, err := createDefault(ctx, tx, org.ID)
		return err
	}
}

func createDefault(ctx context.Context, db execer, orgID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO subscriptions (id, organization_id, plan, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id) DO NOTHING
	`
	result, err := db.ExecContext(ctx, query, uuid.New(), orgID, PlanFree, StatusActive)
	if err != nil {
		return false, fmt.Errorf("failed to create default subscription: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
