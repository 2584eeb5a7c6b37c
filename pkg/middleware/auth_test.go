package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
)

type fakeAuthn map[string]*auth.User

func (f fakeAuthn) Authenticate(_ context.Context, token string) (*auth.User, error) {
	if user, ok := f[token]; ok {
		return user, nil
	}
	return nil, auth.ErrInvalidToken
}

type fakeMemberships map[uuid.UUID][]*orgs.Membership

func (f fakeMemberships) ListMembershipsForUser(_ context.Context, userID uuid.UUID) ([]*orgs.Membership, error) {
	return f[userID], nil
}

type fixture struct {
	mw        *AuthMiddleware
	member    *auth.User
	superuser *auth.User
	orgID     uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		member:    &auth.User{ID: uuid.New(), Email: "agro@a.test", IsActive: true},
		superuser: &auth.User{ID: uuid.New(), Email: "root@a.test", IsActive: true, IsSuperuser: true},
		orgID:     uuid.New(),
	}
	memberships := fakeMemberships{
		f.member.ID: {{UserID: f.member.ID, OrganizationID: f.orgID, OrganizationName: "Org A", Role: rbac.RoleAgronomist}},
	}
	authn := fakeAuthn{"member-token": f.member, "root-token": f.superuser}
	f.mw = NewAuthMiddleware(authn, tenancy.NewResolver(memberships, nil))
	return f
}

func request(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/soil-samples", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestAuthMiddleware_Anonymous(t *testing.T) {
	f := newFixture()

	var tenantErr error
	called := false
	h := f.mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, Principal(r.Context()))
		_, tenantErr = tenancy.FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), request(""))
	assert.True(t, called)
	assert.ErrorIs(t, tenantErr, tenancy.ErrAuthenticationRequired)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	f := newFixture()
	h := f.mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	r := request("")
	r.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header format")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, request("forged"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), auth.ErrInvalidToken.Error())
}

func TestAuthMiddleware_ResolvesTenant(t *testing.T) {
	f := newFixture()

	var tc *tenancy.Context
	h := f.mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, f.member, Principal(r.Context()))
		var err error
		tc, err = tenancy.FromContext(r.Context())
		require.NoError(t, err)
	}))

	h.ServeHTTP(httptest.NewRecorder(), request("member-token"))
	require.NotNil(t, tc)
	assert.Equal(t, f.orgID, tc.OrgID())
	assert.Equal(t, rbac.RoleAgronomist, tc.Role)
	assert.False(t, tc.Admin)
}

func TestAuthMiddleware_SuperuserOutsideAdminHasNoTenant(t *testing.T) {
	f := newFixture()

	var tenantErr error
	h := f.mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, tenantErr = tenancy.FromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), request("root-token"))
	assert.ErrorIs(t, tenantErr, tenancy.ErrUnassignedTenant)
}

func TestAdminHandler(t *testing.T) {
	f := newFixture()
	admin := f.mw.Handler(f.mw.AdminHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, err := tenancy.FromContext(r.Context())
		require.NoError(t, err)
		assert.True(t, tc.Admin)
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"superuser", "root-token", http.StatusNoContent},
		{"member", "member-token", http.StatusForbidden},
		{"anonymous", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			admin.ServeHTTP(w, request(tt.token))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthMiddleware_StoreErrorIsInternal(t *testing.T) {
	mw := NewAuthMiddleware(errAuthn{}, tenancy.NewResolver(fakeMemberships{}, nil))
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, request("anything"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type errAuthn struct{}

func (errAuthn) Authenticate(context.Context, string) (*auth.User, error) {
	return nil, errors.New("connection refused")
}
