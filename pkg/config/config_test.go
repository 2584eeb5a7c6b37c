package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AGRONOMY_POSTGRES_URL", "postgres://localhost/agronomy?sslmode=disable")
	t.Setenv("AGRONOMY_JWT_SECRET", testSecret)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "custom")
	t.Setenv("TEST_BOOL", "1")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_DURATION", "90s")

	assert.Equal(t, "custom", getEnv("TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("TEST_STRING_NOT_SET", "default"))
	assert.True(t, getEnvBool("TEST_BOOL", false))
	assert.True(t, getEnvBool("TEST_BOOL_NOT_SET", true))
	assert.Equal(t, 42, getEnvInt("TEST_INT", 0))
	assert.Equal(t, 7, getEnvInt("TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "redis", cfg.Queue.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Queue.Lease)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Sweeper.MaxAttempts)
	assert.Equal(t, "@every 1m", cfg.Sweeper.Schedule)
	assert.False(t, cfg.Quota.EnforceUsage)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention)
	assert.Equal(t, 10, cfg.Auth.LoginRateLimit)
	assert.Equal(t, 10*time.Second, cfg.Auth.MembershipCacheTTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("AGRONOMY_QUEUE_BACKEND", "MEMORY")
	t.Setenv("AGRONOMY_WORKER_CONCURRENCY", "16")
	t.Setenv("AGRONOMY_QUOTA_ENFORCE_USAGE", "true")
	t.Setenv("AGRONOMY_LOG_LEVEL", "debug")
	t.Setenv("AGRONOMY_POSTGRES_REPLICA_URLS", "postgres://r1,postgres://r2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, 16, cfg.Worker.Concurrency)
	assert.True(t, cfg.Quota.EnforceUsage)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"postgres://r1", "postgres://r2"}, cfg.Database.ReplicaURLs)
}

func TestLoadConfig_JobTimeoutWithinLease(t *testing.T) {
	setRequired(t)
	t.Setenv("AGRONOMY_QUEUE_LEASE", "1m")

	t.Setenv("AGRONOMY_WORKER_JOB_TIMEOUT", "10m")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "queue lease (1m0s) must be longer than worker job timeout")

	t.Setenv("AGRONOMY_WORKER_JOB_TIMEOUT", "0s")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "worker job timeout must be positive")

	t.Setenv("AGRONOMY_WORKER_JOB_TIMEOUT", "45s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Worker.JobTimeout)
}

func TestQueueConfig_RequireSharedWith(t *testing.T) {
	memory := QueueConfig{Backend: "memory"}
	assert.ErrorIs(t, memory.RequireSharedWith(false), ErrProcessLocalQueue)
	assert.NoError(t, memory.RequireSharedWith(true))

	redis := QueueConfig{Backend: "redis"}
	assert.NoError(t, redis.RequireSharedWith(false))
	assert.NoError(t, redis.RequireSharedWith(true))
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AGRONOMY_POSTGRES_URL=postgres://dotenv/db\nAGRONOMY_JWT_SECRET="+testSecret+"\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("AGRONOMY_POSTGRES_URL")
		os.Unsetenv("AGRONOMY_JWT_SECRET")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://dotenv/db", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{URL: "postgres://x", MaxConns: 10, MinConns: 1},
			Redis:    RedisConfig{URL: "redis://localhost:6379"},
			Auth:     AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
			Queue:    QueueConfig{Backend: "redis", Lease: time.Minute},
			Worker:   WorkerConfig{Concurrency: 1, JobTimeout: 30 * time.Second},
			Sweeper:  SweeperConfig{Enabled: true, MaxAttempts: 3},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"same ports", func(c *Config) { c.Server.HealthPort = "8080" }, "server port and health port must be different"},
		{"missing database", func(c *Config) { c.Database.URL = "" }, "postgres URL is required"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT secret must be at least 32 bytes"},
		{"bad backend", func(c *Config) { c.Queue.Backend = "kafka" }, "invalid queue backend: kafka (must be redis or memory)"},
		{"login window", func(c *Config) { c.Auth.LoginRateLimit = 5 }, "login rate window must be positive when a login rate limit is set"},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }, "worker concurrency must be at least 1"},
		{"unbounded job timeout", func(c *Config) { c.Worker.JobTimeout = 0 }, "worker job timeout must be positive"},
		{"job outlives lease", func(c *Config) { c.Worker.JobTimeout = 10 * time.Minute }, "queue lease (1m0s) must be longer than worker job timeout plus finish time (10m10s)"},
		{"no finish headroom", func(c *Config) { c.Worker.JobTimeout = 50 * time.Second }, "queue lease (1m0s) must be longer than worker job timeout plus finish time (1m0s)"},
		{"sweeper attempts", func(c *Config) { c.Sweeper.MaxAttempts = 0 }, "sweeper max attempts must be at least 1"},
		{"otel endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelServiceName = "svc"
		}, "OpenTelemetry endpoint is required when OTel is enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.EqualError(t, cfg.Validate(), tt.wantErr)
		})
	}
}
