// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry tracing.
//
// # Structured Logging
//
// The Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("job_id", id).Info("job claimed")
//
// Request-scoped loggers travel on the context. FromContext attaches the
// request, user and organization ids set by the HTTP middleware:
//
//	observability.FromContext(ctx).Warn("quota denied")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveAuthz("farm", "create", true)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
