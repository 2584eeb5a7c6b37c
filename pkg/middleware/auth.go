package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/contextkeys"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
)

// Authenticator turns a bearer token into its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authn    Authenticator
	resolver *tenancy.Resolver
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authn Authenticator, resolver *tenancy.Resolver) *AuthMiddleware {
	return &AuthMiddleware{authn: authn, resolver: resolver}
}

// Handler wraps an HTTP handler with authentication. A missing header is
// anonymous; a malformed or rejected token is answered with 401.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r.WithContext(m.attach(ctx, nil, r)))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		user, err := m.authn.Authenticate(ctx, parts[1])
		if err != nil {
			httputil.WriteDomainError(w, r, err)
			return
		}

		ctx = contextkeys.WithPrincipal(ctx, user)
		ctx = contextkeys.WithUserID(ctx, user.ID.String())
		next.ServeHTTP(w, r.WithContext(m.attach(ctx, user, r)))
	})
}

// AdminHandler guards the admin surface. It must run after Handler.
func (m *AuthMiddleware) AdminHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextkeys.WithAdminSurface(r.Context())
		// Re-attach so resolution sees the admin marker.
		ctx = m.attach(ctx, Principal(ctx), r)

		tc, err := tenancy.FromContext(ctx)
		if err != nil {
			httputil.WriteDomainError(w, r, err)
			return
		}
		if !tc.Admin {
			httputil.WriteForbidden(w, "superuser required")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) attach(ctx context.Context, user *auth.User, r *http.Request) context.Context {
	return tenancy.Attach(ctx, m.resolver, user, r.Header.Get(tenancy.SelectorHeader))
}

// Principal returns the authenticated user, or nil
func Principal(ctx context.Context) *auth.User {
	user, _ := ctx.Value(contextkeys.PrincipalKey).(*auth.User)
	return user
}
