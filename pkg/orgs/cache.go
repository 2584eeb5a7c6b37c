package orgs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/rbac"
)

const cacheName = "memberships"

// CachedMemberships caches per-user membership lists in an expiring LRU.
// Entries are dropped on any membership write made through it. Writes made
// by other processes (another API replica, agronomy-admin) are only seen
// once the entry expires, so the TTL is the staleness bound for them.
type CachedMemberships struct {
	Service
	cache   *lru.LRU[uuid.UUID, []*Membership]
	metrics *observability.Metrics

	// generation moves on every invalidation. A lookup that started before
	// one does not store its result.
	generation atomic.Uint64
}

// NewCachedMemberships wraps next. A size below one disables caching and
// returns a passthrough.
func NewCachedMemberships(next Service, size int, ttl time.Duration, metrics *observability.Metrics) *CachedMemberships {
	c := &CachedMemberships{Service: next, metrics: metrics}
	if size > 0 {
		c.cache = lru.NewLRU[uuid.UUID, []*Membership](size, nil, ttl)
	}
	return c
}

// ListMembershipsForUser serves from cache when possible
func (c *CachedMemberships) ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(userID); ok {
			c.observe(true)
			return cached, nil
		}
		c.observe(false)
	}

	gen := c.generation.Load()
	memberships, err := c.Service.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.cache != nil && c.generation.Load() == gen {
		c.cache.Add(userID, memberships)
	}
	return memberships, nil
}

// AddMember adds a member and invalidates the user's entry
func (c *CachedMemberships) AddMember(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) (*Membership, error) {
	defer c.Invalidate(userID)
	return c.Service.AddMember(ctx, orgID, userID, role)
}

// UpdateMemberRole updates a role and invalidates the user's entry
func (c *CachedMemberships) UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) error {
	defer c.Invalidate(userID)
	return c.Service.UpdateMemberRole(ctx, orgID, userID, role)
}

// RemoveMember removes a member and invalidates the user's entry
func (c *CachedMemberships) RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error {
	defer c.Invalidate(userID)
	return c.Service.RemoveMember(ctx, orgID, userID)
}

// DeleteOrganization deletes the organization and clears the whole cache,
// since any user may have been a member.
func (c *CachedMemberships) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	defer c.Purge()
	return c.Service.DeleteOrganization(ctx, id)
}

// Invalidate drops one user's cached memberships
func (c *CachedMemberships) Invalidate(userID uuid.UUID) {
	if c.cache != nil {
		c.generation.Add(1)
		c.cache.Remove(userID)
	}
}

// Purge drops every cached entry
func (c *CachedMemberships) Purge() {
	if c.cache != nil {
		c.generation.Add(1)
		c.cache.Purge()
	}
}

func (c *CachedMemberships) observe(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues(cacheName).Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues(cacheName).Inc()
	}
}
