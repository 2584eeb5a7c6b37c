// Package rbac decides whether a tenant member may perform an action on a
// resource.
//
// # Roles
//
// The role set is closed: OWNER, ORG_ADMIN, AGRONOMIST and VIEWER. OWNER,
// ORG_ADMIN and AGRONOMIST are privileged and see every farm and field in
// their organization; VIEWER is scoped to the farms it owns.
//
// # Decisions
//
// Decide is a pure function over a Request; it performs no I/O and is the
// only place access rules live. Stores consult Visibility to narrow list
// queries the same way Decide narrows single-object access.
//
//	d := rbac.Decide(rbac.Request{
//		Role:           tc.Role,
//		Action:         rbac.ActionCreate,
//		Resource:       rbac.ResourceField,
//		RequesterID:    tc.UserID,
//		RequesterOrgID: tc.OrgID,
//		ResourceOrgID:  farm.OrganizationID,
//		OwnerID:        farm.OwnerID,
//	})
//
// Authorizer wraps Decide with logging and metrics and returns a
// *ForbiddenError on denial.
package rbac
