package tenancy

import (
	"context"
	"sync"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/contextkeys"
)

type lazy struct {
	once    sync.Once
	resolve func() (*Context, error)
	tc      *Context
	err     error
}

func (l *lazy) get() (*Context, error) {
	l.once.Do(func() {
		l.tc, l.err = l.resolve()
	})
	return l.tc, l.err
}

// Attach stores a lazy tenant holder on ctx. Nothing is looked up until the
// first FromContext call.
func Attach(ctx context.Context, resolver *Resolver, principal *auth.User, selector string) context.Context {
	resolveCtx := ctx
	holder := &lazy{resolve: func() (*Context, error) {
		return resolver.Resolve(resolveCtx, principal, selector)
	}}
	return contextkeys.WithTenant(ctx, holder)
}

// WithContext stores an already resolved Context, for workers and tests
func WithContext(ctx context.Context, tc *Context) context.Context {
	holder := &lazy{resolve: func() (*Context, error) { return tc, nil }}
	return contextkeys.WithTenant(ctx, holder)
}

// FromContext resolves the tenant once per holder and returns the cached
// outcome afterwards. A context without a holder is unauthenticated.
func FromContext(ctx context.Context) (*Context, error) {
	holder, ok := ctx.Value(contextkeys.TenantKey).(*lazy)
	if !ok {
		return nil, ErrAuthenticationRequired
	}
	return holder.get()
}

// Scope resolves the tenant and returns ctx annotated with the organization
// id for logging
func Scope(ctx context.Context) (context.Context, *Context, error) {
	tc, err := FromContext(ctx)
	if err != nil {
		return ctx, nil, err
	}
	if tc.Organization != nil {
		ctx = contextkeys.WithOrgID(ctx, tc.Organization.ID.String())
	}
	return ctx, tc, nil
}
