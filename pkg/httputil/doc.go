// Package httputil provides HTTP utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, farm)
//	httputil.WriteCreated(w, sample)
//	httputil.WriteNoContent(w)
//
// Domain errors are mapped to status codes in one place:
//
//	job, err := manager.Submit(ctx, tc, &req)
//	if err != nil {
//		httputil.WriteDomainError(w, r, err)
//		return
//	}
//
// # Request Parsing
//
//	var req farms.CreateFarmRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication and tenant middleware
package httputil
