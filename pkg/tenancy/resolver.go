package tenancy

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/contextkeys"
	"github.com/platinummonkey/agronomy/pkg/observability"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
)

// Resolver maps a user and an optional selector to a tenant Context
type Resolver struct {
	memberships orgs.MembershipLookup
	metrics     *observability.Metrics
}

// NewResolver creates a resolver. metrics may be nil.
func NewResolver(memberships orgs.MembershipLookup, metrics *observability.Metrics) *Resolver {
	return &Resolver{memberships: memberships, metrics: metrics}
}

// Resolve determines the organization and role for principal. selector is
// the raw X-Organization-ID value and may be empty. The result depends only
// on the stored memberships and the inputs.
func (r *Resolver) Resolve(ctx context.Context, principal *auth.User, selector string) (*Context, error) {
	tc, err := r.resolve(ctx, principal, strings.TrimSpace(selector))
	r.metrics.ObserveTenant(outcomeLabel(tc, err))
	return tc, err
}

func (r *Resolver) resolve(ctx context.Context, principal *auth.User, selector string) (*Context, error) {
	if principal == nil {
		return nil, ErrAuthenticationRequired
	}

	if principal.IsSuperuser && contextkeys.IsAdminSurface(ctx) {
		return &Context{User: principal, Role: rbac.RoleOrgAdmin, Admin: true}, nil
	}

	memberships, err := r.memberships.ListMembershipsForUser(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}

	var m *orgs.Membership
	switch {
	case selector != "":
		orgID, err := uuid.Parse(selector)
		if err != nil {
			return nil, ErrUnassignedTenant
		}
		for _, candidate := range memberships {
			if candidate.OrganizationID == orgID {
				m = candidate
				break
			}
		}
		if m == nil {
			return nil, ErrUnassignedTenant
		}
	case len(memberships) == 0:
		return nil, ErrUnassignedTenant
	case len(memberships) > 1:
		return nil, ErrOrganizationSelectorRequired
	default:
		m = memberships[0]
	}

	return &Context{
		User: principal,
		Organization: &orgs.Organization{
			ID:   m.OrganizationID,
			Name: m.OrganizationName,
		},
		Membership: m,
		Role:       m.Role,
	}, nil
}

func outcomeLabel(tc *Context, err error) string {
	switch {
	case err == nil && tc.Admin:
		return "admin"
	case err == nil:
		return "resolved"
	case err == ErrAuthenticationRequired:
		return "unauthenticated"
	case err == ErrUnassignedTenant:
		return "unassigned"
	case err == ErrOrganizationSelectorRequired:
		return "selector_required"
	default:
		return "error"
	}
}
