package rbac

import "github.com/google/uuid"

// Denial reasons. Clients see these verbatim.
const (
	ReasonUnknownRole       = "unknown role"
	ReasonCrossOrganization = "resource belongs to a different organization"
	ReasonNotOwner          = "you do not have permission to access this resource"
	ReasonRoleNotAllowed    = "your role does not permit this action"
	ReasonNotPermitted      = "action not permitted"

	ReasonFieldCrossOrganization = "Cannot add fields to a farm in a different organization."
	ReasonFieldNotOwner          = "You do not have permission to add fields to this farm."
)

type rule func(Request) Decision

// policy holds the resource-specific rules. A pair missing from the table
// is denied.
var policy = map[Permission]rule{
	{ResourceOrganization, ActionRead}: anyMember,

	{ResourceMembership, ActionList}:   roleIn(RoleOwner, RoleOrgAdmin),
	{ResourceMembership, ActionCreate}: roleIn(RoleOwner, RoleOrgAdmin),
	{ResourceMembership, ActionUpdate}: roleIn(RoleOwner, RoleOrgAdmin),
	{ResourceMembership, ActionDelete}: roleIn(RoleOwner, RoleOrgAdmin),

	{ResourceSubscription, ActionRead}:   anyMember,
	{ResourceSubscription, ActionUpdate}: roleIn(RoleOwner, RoleOrgAdmin),

	{ResourceFarm, ActionList}:   anyMember,
	{ResourceFarm, ActionCreate}: anyMember,
	{ResourceFarm, ActionRead}:   ownerOrPrivileged(ReasonNotOwner),
	{ResourceFarm, ActionUpdate}: ownerOrPrivileged(ReasonNotOwner),
	{ResourceFarm, ActionDelete}: ownerOrPrivileged(ReasonNotOwner),

	{ResourceField, ActionList}:   anyMember,
	{ResourceField, ActionCreate}: ownerOrPrivileged(ReasonFieldNotOwner),
	{ResourceField, ActionRead}:   ownerOrPrivileged(ReasonNotOwner),
	{ResourceField, ActionUpdate}: ownerOrPrivileged(ReasonNotOwner),
	{ResourceField, ActionDelete}: ownerOrPrivileged(ReasonNotOwner),

	// OWNER may read but not write samples.
	{ResourceSoilSample, ActionList}:   anyMember,
	{ResourceSoilSample, ActionRead}:   anyMember,
	{ResourceSoilSample, ActionCreate}: roleIn(RoleAgronomist, RoleOrgAdmin),
	{ResourceSoilSample, ActionUpdate}: roleIn(RoleAgronomist, RoleOrgAdmin),
	{ResourceSoilSample, ActionDelete}: roleIn(RoleAgronomist, RoleOrgAdmin),

	{ResourceAnalysisJob, ActionList}:   anyMember,
	{ResourceAnalysisJob, ActionRead}:   anyMember,
	{ResourceAnalysisJob, ActionCreate}: anyMember,
}

// Decide evaluates req against the access rules. The organization boundary
// is checked before any role or ownership rule, and a cross-organization
// reference is always a denial rather than a not-found. A missing target gets
// the same denial, so an id from another organization and an unused id are
// indistinguishable.
func Decide(req Request) Decision {
	if !req.Role.Valid() {
		return deny(ReasonUnknownRole)
	}

	if req.TargetMissing || (req.ResourceOrgID != uuid.Nil && req.ResourceOrgID != req.RequesterOrgID) {
		if req.Resource == ResourceField && req.Action == ActionCreate {
			return deny(ReasonFieldCrossOrganization)
		}
		return deny(ReasonCrossOrganization)
	}

	r, ok := policy[req.Permission()]
	if !ok {
		return deny(ReasonNotPermitted)
	}
	return r(req)
}

// Visibility returns the list filter for role on resource. Scoped roles only
// see farms, and fields of farms, that they own.
func Visibility(role Role, resource Resource, requesterID uuid.UUID) Filter {
	switch resource {
	case ResourceFarm, ResourceField:
		if !role.Privileged() {
			id := requesterID
			return Filter{OwnerID: &id}
		}
	}
	return Filter{}
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

func anyMember(Request) Decision {
	return allow()
}

func roleIn(roles ...Role) rule {
	return func(req Request) Decision {
		for _, r := range roles {
			if req.Role == r {
				return allow()
			}
		}
		return deny(ReasonRoleNotAllowed)
	}
}

func ownerOrPrivileged(reason string) rule {
	return func(req Request) Decision {
		if req.Role.Privileged() {
			return allow()
		}
		if req.OwnerID != nil && *req.OwnerID == req.RequesterID {
			return allow()
		}
		return deny(reason)
	}
}
