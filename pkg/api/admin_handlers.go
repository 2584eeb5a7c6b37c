package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/auth"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/orgs"
	"github.com/platinummonkey/agronomy/pkg/rbac"
	"github.com/platinummonkey/agronomy/pkg/validation"
)

// AdminHandlers serves the superuser surface
type AdminHandlers struct {
	orgs  orgs.Service
	users *auth.Service
	audit audit.Logger
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(orgService orgs.Service, users *auth.Service, auditLog audit.Logger) *AdminHandlers {
	return &AdminHandlers{orgs: orgService, users: users, audit: auditLogger(auditLog)}
}

// RegisterRoutes registers admin routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.ListOrganizations).Methods(http.MethodGet)
	router.HandleFunc("/organizations", h.CreateOrganization).Methods(http.MethodPost)
	router.HandleFunc("/organizations/{id}/members", h.ListMembers).Methods(http.MethodGet)
	router.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	router.HandleFunc("/memberships", h.CreateMembership).Methods(http.MethodPost)
}

// ListOrganizations lists every organization
func (h *AdminHandlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.orgs.ListOrganizations(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*orgs.Organization{}
	}
	httputil.WriteSuccess(w, list)
}

type createOrganizationRequest struct {
	Name string `json:"name"`
}

// CreateOrganization creates an organization with its default subscription
func (h *AdminHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	var errs validation.Errors
	validation.Required(&errs, "name", strings.TrimSpace(req.Name))
	if err := errs.Err(); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	org, err := h.orgs.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r, audit.EventTypeAdminOrgCreate, audit.EventStatusSuccess)
	event.OrganizationID = &org.ID
	event.ResourceType = audit.ResourceTypeOrganization
	event.ResourceID = org.ID.String()
	event.Metadata["name"] = org.Name
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteCreated(w, org)
}

// ListMembers lists any organization's members
func (h *AdminHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.orgs.GetOrganization(r.Context(), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	members, err := h.orgs.ListMembers(r.Context(), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	if members == nil {
		members = []*orgs.Membership{}
	}
	httputil.WriteSuccess(w, members)
}

// CreateUser registers a user account
func (h *AdminHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r, audit.EventTypeAdminUserCreate, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = user.ID.String()
	event.Metadata["email"] = user.Email
	audit.Record(r.Context(), h.audit, event)

	httputil.WriteCreated(w, user)
}

type createMembershipRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
}

// CreateMembership assigns a user to an organization
func (h *AdminHandlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	var req createMembershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var errs validation.Errors
	if req.OrganizationID == uuid.Nil {
		errs.Add("organization_id", "This field is required.")
	}
	if req.UserID == uuid.Nil {
		errs.Add("user_id", "This field is required.")
	}
	role, roleErr := rbac.ParseRole(req.Role)
	if roleErr != nil {
		errs.Add("role", roleErr.Error())
	}
	if err := errs.Err(); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := h.orgs.GetOrganization(ctx, req.OrganizationID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	user, err := h.users.GetUser(ctx, req.UserID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	member, err := h.orgs.AddMember(ctx, req.OrganizationID, user.ID, role)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	member.UserEmail = user.Email
	audit.Record(ctx, h.audit, memberAdded(r, member))
	httputil.WriteCreated(w, member)
}
