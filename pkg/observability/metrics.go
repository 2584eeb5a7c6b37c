package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control
	AuthzDecisionsTotal *prometheus.CounterVec
	QuotaDecisionsTotal *prometheus.CounterVec
	TenantResolveTotal  *prometheus.CounterVec

	// Jobs
	JobTransitionsTotal *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	JobsRequeuedTotal   *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec

	// Membership cache
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agronomy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_authz_decisions_total",
				Help: "Authorization decisions by resource, action and outcome",
			},
			[]string{"resource", "action", "outcome"},
		),
		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_quota_decisions_total",
				Help: "Quota guard decisions by feature and outcome",
			},
			[]string{"feature", "outcome"},
		),
		TenantResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_tenant_resolutions_total",
				Help: "Request tenant resolutions by outcome",
			},
			[]string{"outcome"},
		),

		JobTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_job_transitions_total",
				Help: "Soil analysis job state transitions",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agronomy_job_duration_seconds",
				Help:    "Time from claim to terminal state",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		JobsRequeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_jobs_requeued_total",
				Help: "Jobs re-enqueued by the sweeper",
			},
			[]string{"reason"},
		),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agronomy_queue_depth",
				Help: "Queued and in-flight job ids",
			},
			[]string{"state"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agronomy_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.QuotaDecisionsTotal,
		m.TenantResolveTotal,
		m.JobTransitionsTotal,
		m.JobDuration,
		m.JobsRequeuedTotal,
		m.QueueDepth,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// NoopMetrics returns metrics registered on a throwaway registry, for tests
// and binaries started with metrics disabled.
func NoopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveAuthz records an authorization decision
func (m *Metrics) ObserveAuthz(resource, action string, allowed bool) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, action, outcome(allowed)).Inc()
}

// ObserveQuota records a quota guard decision
func (m *Metrics) ObserveQuota(feature string, allowed bool) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(feature, outcome(allowed)).Inc()
}

// ObserveTenant records the outcome of a tenant resolution
func (m *Metrics) ObserveTenant(result string) {
	if m == nil {
		return
	}
	m.TenantResolveTotal.WithLabelValues(result).Inc()
}

// ObserveJob records a job transition
func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.JobTransitionsTotal.WithLabelValues(status).Inc()
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Routes are labelled with the mux path template so ids do not explode
// label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
