// Package tenancy resolves the organization and role a request acts under.
//
// A Resolver turns an authenticated user plus an optional organization
// selector into a Context. HTTP middleware attaches a lazy holder with
// Attach; the first FromContext call performs the lookup and every later
// call in the same request reuses the outcome, errors included.
//
//	ctx = tenancy.Attach(ctx, resolver, user, r.Header.Get(tenancy.SelectorHeader))
//	...
//	tc, err := tenancy.FromContext(ctx)
package tenancy
