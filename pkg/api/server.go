package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/analysis"
	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/billing"
	"github.com/platinummonkey/agronomy/pkg/farms"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/middleware"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/samples"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Services are the collaborators the handlers call into
type Services struct {
	Auth          *auth.Service
	Orgs          orgs.Service
	Subscriptions billing.Store
	Farms         *farms.Service
	Samples       *samples.Service
	Jobs          *analysis.Manager
	Authz         *rbac.Authorizer
	Resolver      *tenancy.Resolver

	// LoginLimiter throttles login attempts. Nil disables throttling.
	LoginLimiter middleware.RateLimiter

	// Audit receives security events. Nil discards them.
	Audit audit.Logger
	// AuditEvents backs the admin audit search. Nil leaves it unrouted.
	AuditEvents audit.Store
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(svc Services, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{router: mux.NewRouter()}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	if metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	authMW := middleware.NewAuthMiddleware(svc.Auth, svc.Resolver)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(authMW.Handler)
	s.registerRoutes(api,
		NewAuthHandlers(svc.Auth, svc.Orgs, svc.LoginLimiter, svc.Audit),
		NewOrgHandlers(svc.Orgs, svc.Auth, svc.Authz, svc.Audit),
		NewFarmHandlers(svc.Farms),
		NewSampleHandlers(svc.Samples),
		NewBillingHandlers(svc.Subscriptions, svc.Authz, svc.Audit),
		NewPredictionHandlers(svc.Jobs),
	)

	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.Handler, authMW.AdminHandler)
	s.registerRoutes(admin, NewAdminHandlers(svc.Orgs, svc.Auth, svc.Audit))
	if svc.AuditEvents != nil {
		s.registerRoutes(admin, audit.NewHandlers(svc.AuditEvents))
	}

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
		httputil.ContentTypeMiddleware,
	)(s.router)

	return s
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

func (s *Server) registerRoutes(router *mux.Router, registrars ...RouteRegistrar) {
	for _, r := range registrars {
		r.RegisterRoutes(router)
	}
}

// Router exposes the router, for tests that need mux route introspection
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// tenant resolves the request tenant, writing the error response on failure
func tenant(w http.ResponseWriter, r *http.Request) (context.Context, *tenancy.Context, bool) {
	ctx, tc, err := tenancy.Scope(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return ctx, nil, false
	}
	return ctx, tc, true
}
