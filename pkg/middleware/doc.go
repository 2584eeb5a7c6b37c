// Package middleware provides the request pipeline in front of the API
// handlers.
//
// # Authentication
//
// AuthMiddleware verifies "Authorization: Bearer <token>" headers and
// attaches the user and a lazily resolved tenant to the request:
//
//	authMW := middleware.NewAuthMiddleware(authService, resolver)
//	api.Use(authMW.Handler)
//
// Requests without a token pass through; handlers that need a tenant get
// tenancy.ErrAuthenticationRequired from tenancy.FromContext.
//
// # Admin surface
//
//	admin.Use(authMW.AdminHandler)
//
// AdminHandler marks the request as admin traffic before resolution and
// rejects everyone but active superusers.
//
// # Rate limiting
//
// RateLimitMiddleware throttles per client address. NewRedisRateLimiter
// shares the window across API replicas; NewMemoryRateLimiter is for
// single-process deployments and tests.
package middleware
