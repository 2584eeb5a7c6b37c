package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

const envPrefix = "AGRONOMY_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Queue         QueueConfig
	Worker        WorkerConfig
	Sweeper       SweeperConfig
	Inference     InferenceConfig
	Quota         QuotaConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL             string
	ReplicaURLs     []string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	Timeout         time.Duration
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthConfig holds token issuing settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string

	// MembershipCacheSize and MembershipCacheTTL bound the resolver cache.
	// A size of zero disables caching. The TTL is how long a membership
	// change made by another process can go unseen.
	MembershipCacheSize int
	MembershipCacheTTL  time.Duration

	// LoginRateLimit caps login attempts per client address per
	// LoginRateWindow. Zero disables the limit.
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// QueueConfig selects and tunes the job queue
type QueueConfig struct {
	Backend      string // "redis" or "memory"
	KeyPrefix    string
	Lease        time.Duration
	PollInterval time.Duration
}

// ErrProcessLocalQueue is returned by RequireSharedWith when the memory queue
// would split producers and consumers across processes
var ErrProcessLocalQueue = errors.New("memory queue backend requires the worker in the API process (agronomy-api --with-worker)")

// RequireSharedWith checks that jobs enqueued by the API reach a worker. The
// memory backend lives in one process, so it is only usable when the API
// runs the worker itself.
func (c QueueConfig) RequireSharedWith(inProcessWorker bool) error {
	if c.Backend == "memory" && !inProcessWorker {
		return ErrProcessLocalQueue
	}
	return nil
}

// JobFinishTimeout bounds the worker's terminal write after a job's own
// deadline. The queue lease must outlast JobTimeout plus this.
const JobFinishTimeout = 10 * time.Second

// WorkerConfig holds async worker settings
type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
}

// SweeperConfig holds stale-job recovery settings
type SweeperConfig struct {
	Enabled      bool
	Schedule     string
	PendingAfter time.Duration
	MaxAttempts  int
}

// InferenceConfig points at the model artifact and its object store
type InferenceConfig struct {
	ModelSource    string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// QuotaConfig toggles usage enforcement on top of the plan check
type QuotaConfig struct {
	EnforceUsage bool
}

// AuditConfig controls the audit trail
type AuditConfig struct {
	// Enabled stores events in the audit_events table
	Enabled bool
	// LogEvents also writes each event to the application log
	LogEvents bool
	// Retention is how long audit-cleanup keeps events
	Retention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// OTel converts the settings into an observability.OTelConfig
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory, when present, is loaded first and never overrides
// variables that are already set.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Queue:         loadQueueConfig(),
		Worker:        loadWorkerConfig(),
		Sweeper:       loadSweeperConfig(),
		Inference:     loadInferenceConfig(),
		Quota:         QuotaConfig{EnforceUsage: getEnvBool(envPrefix+"QUOTA_ENFORCE_USAGE", false)},
		Audit: AuditConfig{
			Enabled:   getEnvBool(envPrefix+"AUDIT_ENABLED", true),
			LogEvents: getEnvBool(envPrefix+"AUDIT_LOG_EVENTS", false),
			Retention: getEnvDuration(envPrefix+"AUDIT_RETENTION", 90*24*time.Hour),
		},
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv(envPrefix+"HOST", "0.0.0.0"),
		Port:            getEnv(envPrefix+"PORT", "8080"),
		ReadTimeout:     getEnvDuration(envPrefix+"READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration(envPrefix+"WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration(envPrefix+"IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration(envPrefix+"SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv(envPrefix+"HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv(envPrefix+"POSTGRES_URL", ""),
		ReplicaURLs:     splitList(getEnv(envPrefix+"POSTGRES_REPLICA_URLS", "")),
		MaxConns:        getEnvInt(envPrefix+"POSTGRES_MAX_CONNS", 20),
		MinConns:        getEnvInt(envPrefix+"POSTGRES_MIN_CONNS", 2),
		ConnMaxLifetime: getEnvDuration(envPrefix+"POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		Timeout:         getEnvDuration(envPrefix+"POSTGRES_TIMEOUT", 10*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv(envPrefix+"REDIS_URL", "redis://localhost:6379/0"),
		Password:   getEnv(envPrefix+"REDIS_PASSWORD", ""),
		DB:         getEnvInt(envPrefix+"REDIS_DB", 0),
		MaxRetries: getEnvInt(envPrefix+"REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt(envPrefix+"REDIS_POOL_SIZE", 10),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:           getEnv(envPrefix+"JWT_SECRET", ""),
		TokenTTL:            getEnvDuration(envPrefix+"TOKEN_TTL", time.Hour),
		Issuer:              getEnv(envPrefix+"TOKEN_ISSUER", "agronomy"),
		MembershipCacheSize: getEnvInt(envPrefix+"MEMBERSHIP_CACHE_SIZE", 1024),
		MembershipCacheTTL:  getEnvDuration(envPrefix+"MEMBERSHIP_CACHE_TTL", 10*time.Second),
		LoginRateLimit:      getEnvInt(envPrefix+"LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:     getEnvDuration(envPrefix+"LOGIN_RATE_WINDOW", time.Minute),
	}
}

func loadQueueConfig() QueueConfig {
	return QueueConfig{
		Backend:      strings.ToLower(getEnv(envPrefix+"QUEUE_BACKEND", "redis")),
		KeyPrefix:    getEnv(envPrefix+"QUEUE_KEY_PREFIX", "agronomy:jobs"),
		Lease:        getEnvDuration(envPrefix+"QUEUE_LEASE", 5*time.Minute),
		PollInterval: getEnvDuration(envPrefix+"QUEUE_POLL_INTERVAL", time.Second),
	}
}

func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency: getEnvInt(envPrefix+"WORKER_CONCURRENCY", 4),
		JobTimeout:  getEnvDuration(envPrefix+"WORKER_JOB_TIMEOUT", 2*time.Minute),
	}
}

func loadSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Enabled:      getEnvBool(envPrefix+"SWEEPER_ENABLED", true),
		Schedule:     getEnv(envPrefix+"SWEEPER_SCHEDULE", "@every 1m"),
		PendingAfter: getEnvDuration(envPrefix+"SWEEPER_PENDING_AFTER", 2*time.Minute),
		MaxAttempts:  getEnvInt(envPrefix+"SWEEPER_MAX_ATTEMPTS", 3),
	}
}

func loadInferenceConfig() InferenceConfig {
	return InferenceConfig{
		ModelSource:    getEnv(envPrefix+"MODEL_SOURCE", ""),
		S3Region:       getEnv(envPrefix+"S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv(envPrefix+"S3_ENDPOINT", ""),
		S3AccessKey:    getEnv(envPrefix+"S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv(envPrefix+"S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool(envPrefix+"S3_USE_PATH_STYLE", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv(envPrefix+"LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool(envPrefix+"METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool(envPrefix+"OTEL_ENABLED", false),
		OTelEndpoint:       getEnv(envPrefix+"OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv(envPrefix+"OTEL_SERVICE_NAME", "agronomy"),
		OTelServiceVersion: getEnv(envPrefix+"OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool(envPrefix+"OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.LoginRateLimit > 0 && c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate window must be positive when a login rate limit is set")
	}

	switch c.Queue.Backend {
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis queue backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid queue backend: %s (must be redis or memory)", c.Queue.Backend)
	}
	if c.Queue.Lease <= 0 {
		return fmt.Errorf("queue lease must be positive")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1")
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job timeout must be positive")
	}
	if finish := c.Worker.JobTimeout + JobFinishTimeout; finish >= c.Queue.Lease {
		return fmt.Errorf("queue lease (%s) must be longer than worker job timeout plus finish time (%s)", c.Queue.Lease, finish)
	}
	if c.Sweeper.Enabled && c.Sweeper.MaxAttempts < 1 {
		return fmt.Errorf("sweeper max attempts must be at least 1")
	}
	if c.Audit.Retention < 0 {
		return fmt.Errorf("audit retention must not be negative")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
