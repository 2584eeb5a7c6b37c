package tenancy

import (
	"errors"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
)

// SelectorHeader names the organization a multi-membership user acts under
const SelectorHeader = "X-Organization-ID"

var (
	ErrAuthenticationRequired       = errors.New("authentication required")
	ErrUnassignedTenant             = errors.New("user is not assigned to an organization")
	ErrOrganizationSelectorRequired = errors.New("user belongs to several organizations; set " + SelectorHeader)
)

// Context is the resolved tenant of a request. Organization and Membership
// are nil only for the admin short-circuit.
type Context struct {
	User         *auth.User
	Organization *orgs.Organization
	Membership   *orgs.Membership
	Role         rbac.Role
	Admin        bool
}

// UserID returns the acting user's id
func (c *Context) UserID() uuid.UUID {
	if c == nil || c.User == nil {
		return uuid.Nil
	}
	return c.User.ID
}

// OrgID returns the resolved organization id, or uuid.Nil
func (c *Context) OrgID() uuid.UUID {
	if c == nil || c.Organization == nil {
		return uuid.Nil
	}
	return c.Organization.ID
}

// Request builds an authorization request for the acting user. The target
// organization and owner are left for the caller to fill.
func (c *Context) Request(action rbac.Action, resource rbac.Resource) rbac.Request {
	return rbac.Request{
		Role:           c.Role,
		Action:         action,
		Resource:       resource,
		RequesterID:    c.UserID(),
		RequesterOrgID: c.OrgID(),
	}
}

// Visibility returns the list filter for resource under this context
func (c *Context) Visibility(resource rbac.Resource) rbac.Filter {
	return rbac.Visibility(c.Role, resource, c.UserID())
}
