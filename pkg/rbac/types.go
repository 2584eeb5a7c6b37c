package rbac

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is a member's role inside one organization
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleOrgAdmin   Role = "ORG_ADMIN"
	RoleAgronomist Role = "AGRONOMIST"
	RoleViewer     Role = "VIEWER"
)

// Roles lists every valid role
var Roles = []Role{RoleOwner, RoleOrgAdmin, RoleAgronomist, RoleViewer}

// ParseRole accepts a role name in any case and rejects anything outside
// the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleOrgAdmin, RoleAgronomist, RoleViewer:
		return true
	}
	return false
}

// Privileged reports whether r sees organization-wide farm and field data
func (r Role) Privileged() bool {
	switch r {
	case RoleOwner, RoleOrgAdmin, RoleAgronomist:
		return true
	}
	return false
}

// Resource represents a resource type in the system
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceMembership   Resource = "membership"
	ResourceSubscription Resource = "subscription"
	ResourceFarm         Resource = "farm"
	ResourceField        Resource = "field"
	ResourceSoilSample   Resource = "soil_sample"
	ResourceAnalysisJob  Resource = "analysis_job"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Request is everything Decide looks at.
//
// ResourceOrgID is the organization of the target object, or of the parent
// object for creates that reference one (a field's farm). It is uuid.Nil for
// list and parentless creates. OwnerID is the target's owner, or the
// parent farm's owner for fields. TargetMissing marks a by-id target with
// no row; it is denied exactly like a cross-organization target.
type Request struct {
	Role           Role
	Action         Action
	Resource       Resource
	RequesterID    uuid.UUID
	RequesterOrgID uuid.UUID
	ResourceOrgID  uuid.UUID
	OwnerID        *uuid.UUID
	TargetMissing  bool
}

// Permission returns the resource/action pair of the request
func (r Request) Permission() Permission {
	return Permission{Resource: r.Resource, Action: r.Action}
}

// Decision is the outcome of Decide
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Filter narrows a list query inside one organization. A nil OwnerID means
// no owner restriction.
type Filter struct {
	OwnerID *uuid.UUID
}
