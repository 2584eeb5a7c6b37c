// Package storage opens the backing services the agronomy binaries share:
// the Redis client used by the job queue and health checks, and the S3
// client used to fetch model artifacts. PostgreSQL connections and schema
// migrations live in the postgres subpackage.
package storage
