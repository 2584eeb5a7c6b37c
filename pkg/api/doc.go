// Package api provides the HTTP REST API server for the agronomy backend.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into domain-specific handler groups:
//
//   - Authentication: login and the current user
//   - Organization: the caller's organization and its members
//   - Agronomy: farms and fields
//   - Soil samples
//   - Subscriptions: plan, status and limits of the caller's organization
//   - Predictions: spectral analysis jobs
//   - Admin: superuser-only organization, user and membership management,
//     and audit event search
//
// Logins, membership changes, subscription updates and admin actions are
// recorded through Services.Audit.
//
// Every business route resolves the caller's tenant through
// tenancy.FromContext; the admin surface is the only place a superuser acts
// without a membership.
//
// # Key Types
//
// Server is the main API server that coordinates all handler groups:
//
//	server := api.NewServer(api.Services{...}, logger, metrics)
//	http.ListenAndServe(":8080", server)
//
// # Error Handling
//
// Handlers return domain errors through httputil.WriteDomainError, which
// maps them to status codes:
//
//	401 authentication required, invalid token or credentials
//	403 unassigned tenant, selector required, forbidden, quota exceeded
//	400 validation errors, with per-field messages
//
// An id that does not exist is answered with the same 403 as an id of
// another organization.
//	409 duplicate organizations or memberships
//
// # Related Packages
//
//   - pkg/middleware: Authentication, admin and rate limit middleware
//   - pkg/httputil: Response and request helpers
//   - pkg/tenancy: Request tenant resolution
//   - pkg/audit: Audit trail
package api
