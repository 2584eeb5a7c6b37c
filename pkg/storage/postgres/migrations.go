package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the schema migrations in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and organizations",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					email VARCHAR(254) NOT NULL UNIQUE,
					full_name VARCHAR(255) NOT NULL DEFAULT '',
					password_hash VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
					date_joined TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMPTZ
				);

				CREATE TABLE IF NOT EXISTS organizations (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create memberships",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL CHECK (role IN ('OWNER', 'ORG_ADMIN', 'AGRONOMIST', 'VIEWER')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (user_id, organization_id)
				);

				CREATE INDEX IF NOT EXISTS idx_memberships_organization_id ON memberships(organization_id);
			`,
		},
		{
			Version:     3,
			Description: "Create subscriptions",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL UNIQUE REFERENCES organizations(id) ON DELETE CASCADE,
					plan VARCHAR(10) NOT NULL DEFAULT 'FREE' CHECK (plan IN ('FREE', 'PRO')),
					status VARCHAR(10) NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'INACTIVE', 'PAST_DUE')),
					current_period_start TIMESTAMPTZ,
					current_period_end TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create farms and fields",
			SQL: `
				CREATE TABLE IF NOT EXISTS farms (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					owner_id UUID REFERENCES users(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					location VARCHAR(255) NOT NULL,
					total_area_hectares NUMERIC(10, 2) NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_farms_organization_owner ON farms(organization_id, owner_id);

				CREATE TABLE IF NOT EXISTS fields (
					id UUID PRIMARY KEY,
					farm_id UUID NOT NULL REFERENCES farms(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					crop_type VARCHAR(20) NOT NULL DEFAULT 'MAIZE'
						CHECK (crop_type IN ('MAIZE', 'BEANS', 'WHEAT', 'COFFEE', 'TEA', 'OTHER')),
					area_hectares NUMERIC(10, 2) NOT NULL,
					latitude DOUBLE PRECISION,
					longitude DOUBLE PRECISION,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK ((latitude IS NULL) = (longitude IS NULL))
				);

				CREATE INDEX IF NOT EXISTS idx_fields_farm_id ON fields(farm_id);
			`,
		},
		{
			Version:     5,
			Description: "Create soil samples",
			SQL: `
				CREATE TABLE IF NOT EXISTS soil_samples (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					uploaded_by UUID REFERENCES users(id) ON DELETE SET NULL,
					label VARCHAR(255) NOT NULL,
					latitude NUMERIC(9, 6),
					longitude NUMERIC(9, 6),
					depth_cm INTEGER NOT NULL DEFAULT 15 CHECK (depth_cm >= 0),
					crop_type VARCHAR(100) NOT NULL DEFAULT '',
					ph DOUBLE PRECISION NOT NULL CHECK (ph >= 0 AND ph <= 14),
					nitrogen DOUBLE PRECISION CHECK (nitrogen >= 0),
					phosphorus DOUBLE PRECISION CHECK (phosphorus >= 0),
					potassium DOUBLE PRECISION CHECK (potassium >= 0),
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK ((latitude IS NULL) = (longitude IS NULL))
				);

				CREATE INDEX IF NOT EXISTS idx_soil_samples_organization_created ON soil_samples(organization_id, created_at);
			`,
		},
		{
			Version:     6,
			Description: "Create soil analysis jobs",
			SQL: `
				CREATE TABLE IF NOT EXISTS analysis_jobs (
					id UUID PRIMARY KEY,
					organization_id UUID NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					requested_by UUID REFERENCES users(id) ON DELETE SET NULL,
					status VARCHAR(10) NOT NULL DEFAULT 'PENDING'
						CHECK (status IN ('PENDING', 'RUNNING', 'SUCCESS', 'FAILED')),
					spectra JSONB NOT NULL,
					predicted_properties JSONB,
					error_message TEXT,
					attempts INTEGER NOT NULL DEFAULT 0,
					lease_expires_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_analysis_jobs_organization_created ON analysis_jobs(organization_id, created_at);
				CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status_updated ON analysis_jobs(status, updated_at);
			`,
		},
		{
			Version:     7,
			Description: "Create audit events",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					occurred_at TIMESTAMPTZ NOT NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					user_id UUID,
					user_email VARCHAR(254) NOT NULL DEFAULT '',
					organization_id UUID,
					resource_type VARCHAR(50) NOT NULL DEFAULT '',
					resource_id VARCHAR(255) NOT NULL DEFAULT '',
					ip_address VARCHAR(45) NOT NULL DEFAULT '',
					request_id VARCHAR(100) NOT NULL DEFAULT '',
					message TEXT NOT NULL DEFAULT '',
					metadata JSONB,
					changes JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_occurred ON audit_events(occurred_at DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_events_organization ON audit_events(organization_id, occurred_at DESC);
				CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		logger.WithField("version", m.Version).Infof("running migration: %s", m.Description)
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
