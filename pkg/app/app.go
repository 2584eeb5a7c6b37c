package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/api"
	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/config"
	"github.com/platinummonkey/agronomy/pkg/farms"
	"github.com/platinummonkey/agronomy/pkg/inference"
	"github.com/platinummonkey/agronomy/pkg/middleware"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/queue"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/samples"
	"github.com/platinummonkey/agronomy/pkg/storage"
	"github.com/platinummonkey/agronomy/pkg/storage/postgres"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/worker"
)

// App holds the wired services of one process
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Shutdown *observability.ShutdownManager

	DB    *postgres.ConnectionManager
	Redis *redis.Client // nil unless a component needs Redis
	Queue queue.Queue

	JobStore   *analysis.PostgresStore
	AuditStore *audit.DBLogger // nil when the audit trail is disabled
	Services   api.Services
}

// Build connects to the backing stores and wires the services. Resources
// opened so far are released when it fails.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (a *App, err error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	a = &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Metrics:  metrics,
		Shutdown: observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout),
	}
	defer func() {
		if err != nil {
			if shutdownErr := a.Shutdown.Shutdown(context.Background()); shutdownErr != nil {
				logger.WithError(shutdownErr).Warn("cleanup after failed startup incomplete")
			}
			a = nil
		}
	}()

	a.DB, err = postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return a, fmt.Errorf("failed to open database: %w", err)
	}
	a.Shutdown.Register("database", func(context.Context) error { return a.DB.Close() })

	if needsRedis(cfg) {
		a.Redis, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return a, err
		}
		a.Shutdown.Register("redis", func(context.Context) error { return a.Redis.Close() })
	}

	var client redis.UniversalClient
	if a.Redis != nil {
		client = a.Redis
	}
	a.Queue, err = queue.New(cfg.Queue, client)
	if err != nil {
		return a, err
	}

	db := a.DB.Primary()
	authz := rbac.NewAuthorizer(metrics)

	orgService := orgs.NewCachedMemberships(
		orgs.NewPostgresService(db, billing.DefaultSubscriptionHook()),
		cfg.Auth.MembershipCacheSize,
		cfg.Auth.MembershipCacheTTL,
		metrics,
	)
	subscriptions := billing.NewPostgresService(db)

	a.JobStore = analysis.NewPostgresStore(db)
	guard := billing.NewGuard(subscriptions, metrics)
	if cfg.Quota.EnforceUsage {
		guard.CountUsage(billing.FeaturePredictions, a.JobStore)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	auditLog, err := a.auditTrail(db)
	if err != nil {
		return a, err
	}

	a.Services = api.Services{
		Auth:          auth.NewService(auth.NewPostgresStore(db), tokens),
		Orgs:          orgService,
		Subscriptions: subscriptions,
		Farms:         farms.NewService(farms.NewPostgresStore(db), authz),
		Samples:       samples.NewService(samples.NewPostgresStore(db), authz),
		Jobs: analysis.NewManager(a.JobStore, a.Queue, authz, guard, metrics, analysis.Options{
			Lease:       cfg.Queue.Lease,
			MaxAttempts: cfg.Sweeper.MaxAttempts,
		}),
		Authz:        authz,
		Resolver:     tenancy.NewResolver(orgService, metrics),
		LoginLimiter: a.loginLimiter(),
		Audit:        auditLog,
	}
	if a.AuditStore != nil {
		a.Services.AuditEvents = a.AuditStore
	}
	return a, nil
}

// auditTrail builds the audit logger from cfg.Audit. The result is nil when
// neither the table nor the application log is enabled.
func (a *App) auditTrail(db *sql.DB) (audit.Logger, error) {
	var loggers []audit.Logger
	if a.Config.Audit.Enabled {
		store, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		a.AuditStore = store
		loggers = append(loggers, store)
	}
	if a.Config.Audit.LogEvents {
		loggers = append(loggers, audit.NewStructuredLogger(a.Logger))
	}
	if len(loggers) == 0 {
		return nil, nil
	}

	multi := audit.NewMultiLogger(loggers...)
	a.Shutdown.Register("audit", func(context.Context) error { return multi.Close() })
	return multi, nil
}

// CleanupAudit removes audit events older than the configured retention
func (a *App) CleanupAudit(ctx context.Context) (int64, error) {
	if a.AuditStore == nil {
		return 0, fmt.Errorf("audit trail is disabled")
	}
	return a.AuditStore.Cleanup(ctx, time.Now().Add(-a.Config.Audit.Retention))
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Queue.Backend == "redis"
}

// loginLimiter shares counters through Redis when it is connected, so every
// API replica sees the same attempts
func (a *App) loginLimiter() middleware.RateLimiter {
	limit := middleware.RateLimitConfig{
		Requests: a.Config.Auth.LoginRateLimit,
		Window:   a.Config.Auth.LoginRateWindow,
	}
	if limit.Requests <= 0 {
		return nil
	}
	if a.Redis != nil {
		return middleware.NewRedisRateLimiter(a.Redis, limit, "")
	}
	return middleware.NewMemoryRateLimiter(limit)
}

// Migrate applies pending schema migrations on the primary
func (a *App) Migrate(ctx context.Context) error {
	return postgres.RunMigrations(ctx, a.DB.Primary(), a.Logger)
}

// HealthChecker probes the database and, when connected, Redis
func (a *App) HealthChecker(version string) *observability.HealthChecker {
	return observability.NewHealthChecker(a.DB.Primary(), a.Redis, version)
}

// Sweeper returns the stale job sweeper
func (a *App) Sweeper() *analysis.Sweeper {
	return analysis.NewSweeper(a.JobStore, a.Queue, a.Config.Sweeper, a.Logger, a.Metrics)
}

// Worker loads the model artifact and returns a worker driving a.Services.Jobs
func (a *App) Worker(ctx context.Context) (*worker.Worker, error) {
	var reader inference.ObjectReader
	if strings.HasPrefix(a.Config.Inference.ModelSource, "s3://") {
		s3Reader, err := storage.NewS3Reader(ctx, a.Config.Inference)
		if err != nil {
			return nil, err
		}
		reader = s3Reader
	}

	model, err := inference.LoadModel(ctx, a.Config.Inference.ModelSource, reader)
	if err != nil {
		return nil, err
	}
	a.Logger.WithFields(map[string]interface{}{
		"source": a.Config.Inference.ModelSource,
		"method": model.Method,
	}).Info("model loaded")

	return worker.New(a.Queue, a.Services.Jobs, model, a.Config.Worker, a.Config.Queue.PollInterval, a.Logger, a.Metrics)
}
