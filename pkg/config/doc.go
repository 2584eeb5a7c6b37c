// Package config loads application configuration from environment variables.
//
// A .env file in the working directory is read first (godotenv) and never
// overrides variables already present in the environment.
//
// Server settings:
//
//	AGRONOMY_HOST="0.0.0.0"
//	AGRONOMY_PORT="8080"
//	AGRONOMY_HEALTH_PORT="9090"
//
// Storage:
//
//	AGRONOMY_POSTGRES_URL="postgres://localhost/agronomy?sslmode=disable"
//	AGRONOMY_REDIS_URL="redis://localhost:6379/0"
//
// Auth:
//
//	AGRONOMY_JWT_SECRET="<at least 32 bytes>"
//	AGRONOMY_TOKEN_TTL="1h"
//	AGRONOMY_MEMBERSHIP_CACHE_TTL="10s"  # how long other processes' membership changes may go unseen
//
// Jobs:
//
//	AGRONOMY_QUEUE_BACKEND="redis"      # redis, or memory for agronomy-api --with-worker only
//	AGRONOMY_QUEUE_LEASE="5m"
//	AGRONOMY_WORKER_CONCURRENCY="4"
//	AGRONOMY_WORKER_JOB_TIMEOUT="2m"   # plus 10s must fit in the lease
//	AGRONOMY_SWEEPER_SCHEDULE="@every 1m"
//	AGRONOMY_SWEEPER_MAX_ATTEMPTS="3"
//	AGRONOMY_MODEL_SOURCE="s3://models/som-plsr.yaml"
//
// Quota:
//
//	AGRONOMY_QUOTA_ENFORCE_USAGE="false"
//
// Audit:
//
//	AGRONOMY_AUDIT_ENABLED="true"
//	AGRONOMY_AUDIT_RETENTION="2160h"
//
// Validate rejects inconsistent settings before any service starts.
package config
