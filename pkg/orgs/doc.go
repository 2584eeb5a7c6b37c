// Package orgs stores organizations (tenants) and memberships.
//
// An Organization is the isolation boundary for every farm, field, sample,
// job and subscription. A Membership binds one user to one organization
// with one rbac.Role; the pair (user, organization) is unique.
//
// CreateOrganization runs its CreateHooks inside the insert transaction.
// billing registers one that provisions the default subscription, so an
// organization never exists without one.
//
// CachedMemberships fronts the membership lookup used on every request
// with an expiring LRU and is invalidated by the service's writes.
package orgs
