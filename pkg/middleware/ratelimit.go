package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// Requests is the max requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Result is the outcome of one rate limit check
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts hits per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MemoryRateLimiter is a fixed-window limiter for a single process
type MemoryRateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryRateLimiter creates an in-process rate limiter
func NewMemoryRateLimiter(config RateLimitConfig) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		config:  config,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts a hit for key
func (rl *MemoryRateLimiter) Allow(_ context.Context, key string) (Result, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.config.Window)}
		rl.windows[key] = w
	}
	w.count++
	return newResult(rl.config.Requests, w.count, w.resetAt.Sub(now)), nil
}

// Cleanup removes expired windows
func (rl *MemoryRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitMiddleware throttles requests per client address. Limiter errors
// fail open.
func RateLimitMiddleware(limiter RateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + httputil.ClientIP(r)

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(res.ResetIn).Unix()))

			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", math.Ceil(res.ResetIn.Seconds())))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
