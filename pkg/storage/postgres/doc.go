// Package postgres manages PostgreSQL connections and the schema.
//
// ConnectionManager holds the primary and optional read replicas.
// RunMigrations applies the versioned schema in Migrations, recording each
// applied version in schema_migrations.
package postgres
