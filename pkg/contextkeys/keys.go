// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/agronomy/pkg/contextkeys"
//	ctx = contextkeys.WithPrincipal(ctx, user)
//	user := ctx.Value(contextkeys.PrincipalKey).(*auth.User)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.User
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: tenancy resolver, /api/me
	// Type: *auth.User
	PrincipalKey Key = "principal"

	// TenantKey contains the lazily resolved tenant context holder
	// Set by: middleware.TenantMiddleware (pkg/middleware/tenant.go)
	// Required by: every org-scoped handler via tenancy.FromRequest
	// Type: *tenancy.lazy (unexported)
	TenantKey Key = "tenant"

	// OrgIDKey contains the resolved organization ID string
	// Set by: tenancy.Scope once resolution succeeds
	// Used by: Logger
	// Type: string
	OrgIDKey Key = "organization_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: Auth middleware after user authentication
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware, worker
	// Used by: Handlers and services that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"

	// AdminSurfaceKey marks requests routed through the /admin surface
	// Set by: api.Server admin subrouter
	// Used by: tenancy resolver (superuser short-circuit)
	// Type: bool
	AdminSurfaceKey Key = "admin_surface"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated user to the context
func WithPrincipal(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, user)
}

// WithTenant adds the tenant holder to the context
func WithTenant(ctx context.Context, holder interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, holder)
}

// WithOrgID adds organization ID to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAdminSurface marks the context as belonging to the admin surface
func WithAdminSurface(ctx context.Context) context.Context {
	return context.WithValue(ctx, AdminSurfaceKey, true)
}

// IsAdminSurface reports whether the request came through the admin surface
func IsAdminSurface(ctx context.Context) bool {
	v, _ := ctx.Value(AdminSurfaceKey).(bool)
	return v
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetOrgID retrieves organization ID from context
func GetOrgID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok {
		return orgID
	}
	return ""
}
