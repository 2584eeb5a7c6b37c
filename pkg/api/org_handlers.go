package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/tenancy"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// OrgHandlers handles the caller's organization and its members
type OrgHandlers struct {
	orgs  orgs.Service
	users *auth.Service
	authz *rbac.Authorizer
	audit audit.Logger
}

// NewOrgHandlers creates a new OrgHandlers
func NewOrgHandlers(orgService orgs.Service, users *auth.Service, authz *rbac.Authorizer, auditLog audit.Logger) *OrgHandlers {
	return &OrgHandlers{orgs: orgService, users: users, authz: authz, audit: auditLogger(auditLog)}
}

// RegisterRoutes registers organization routes
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organization", h.GetOrganization).Methods(http.MethodGet)

	// Members
	router.HandleFunc("/organization/members", h.ListMembers).Methods(http.MethodGet)
	router.HandleFunc("/organization/members", h.AddMember).Methods(http.MethodPost)
	router.HandleFunc("/organization/members/{user_id}", h.UpdateMember).Methods(http.MethodPatch)
	router.HandleFunc("/organization/members/{user_id}", h.RemoveMember).Methods(http.MethodDelete)
}

type organizationResponse struct {
	*orgs.Organization
	Role rbac.Role `json:"role"`
}

// GetOrganization returns the caller's organization and role in it
func (h *OrgHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return
	}
	if err := h.authz.Authorize(ctx, tc.Request(rbac.ActionRead, rbac.ResourceOrganization)); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	org, err := h.orgs.GetOrganization(ctx, tc.OrgID())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, organizationResponse{Organization: org, Role: tc.Role})
}

// ListMembers lists the members of the caller's organization
func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := h.authorize(w, r, rbac.ActionList)
	if !ok {
		return
	}

	members, err := h.orgs.ListMembers(ctx, tc.OrgID())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if members == nil {
		members = []*orgs.Membership{}
	}
	httputil.WriteSuccess(w, members)
}

type addMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AddMember adds an existing user to the caller's organization
func (h *OrgHandlers) AddMember(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := h.authorize(w, r, rbac.ActionCreate)
	if !ok {
		return
	}

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var errs validation.Errors
	validation.Required(&errs, "email", strings.TrimSpace(req.Email))
	role, roleErr := rbac.ParseRole(req.Role)
	if roleErr != nil {
		errs.Add("role", roleErr.Error())
	}
	if err := errs.Err(); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, auth.ErrUserNotFound) {
		httputil.WriteDomainError(w, r, validation.New("email", "No user with this email exists."))
		return
	}
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	member, err := h.orgs.AddMember(ctx, tc.OrgID(), user.ID, role)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	member.UserEmail = user.Email
	audit.Record(ctx, h.audit, memberAdded(r, member))
	httputil.WriteCreated(w, member)
}

type updateMemberRequest struct {
	Role string `json:"role"`
}

// UpdateMember changes a member's role
func (h *OrgHandlers) UpdateMember(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := h.authorize(w, r, rbac.ActionUpdate)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "user_id")
	if !ok {
		return
	}

	var req updateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		httputil.WriteDomainError(w, r, validation.New("role", err.Error()))
		return
	}

	before, err := h.orgs.GetMember(ctx, tc.OrgID(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if err := h.orgs.UpdateMemberRole(ctx, tc.OrgID(), userID, role); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	member, err := h.orgs.GetMember(ctx, tc.OrgID(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := membershipEvent(r, audit.EventTypeMemberRoleChange, tc.OrgID(), userID)
	event.Changes = &audit.ChangeDetails{
		Before: map[string]interface{}{"role": string(before.Role)},
		After:  map[string]interface{}{"role": string(member.Role)},
	}
	audit.Record(ctx, h.audit, event)

	httputil.WriteSuccess(w, member)
}

// RemoveMember removes a member from the caller's organization
func (h *OrgHandlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx, tc, ok := h.authorize(w, r, rbac.ActionDelete)
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathUUIDOrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.orgs.RemoveMember(ctx, tc.OrgID(), userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	audit.Record(ctx, h.audit, membershipEvent(r, audit.EventTypeMemberRemove, tc.OrgID(), userID))
	httputil.WriteNoContent(w)
}

func (h *OrgHandlers) authorize(w http.ResponseWriter, r *http.Request, action rbac.Action) (context.Context, *tenancy.Context, bool) {
	ctx, tc, ok := tenant(w, r)
	if !ok {
		return nil, nil, false
	}
	if err := h.authz.Authorize(ctx, tc.Request(action, rbac.ResourceMembership)); err != nil {
		httputil.WriteDomainError(w, r, err)
		return nil, nil, false
	}
	return ctx, tc, true
}
