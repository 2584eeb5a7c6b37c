package orgs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/rbac"
)

// Organization represents a tenant
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership binds a user to an organization with a role
type Membership struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           rbac.Role `json:"role"`
	CreatedAt      time.Time `json:"created_at"`

	// Populated by list queries
	UserEmail        string `json:"user_email,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// CreateHook runs inside the organization insert transaction
type CreateHook func(ctx context.Context, tx *sql.Tx, org *Organization) error

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationExists   = errors.New("organization with this name already exists")
	ErrMemberNotFound       = errors.New("member not found")
	ErrMemberExists         = errors.New("member already exists")
)

// MembershipLookup is the read path used by request tenancy resolution
type MembershipLookup interface {
	ListMembershipsForUser(ctx context.Context, userID uuid.UUID) ([]*Membership, error)
}

// Service defines the interface for organization management
type Service interface {
	MembershipLookup

	CreateOrganization(ctx context.Context, name string) (*Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]*Organization, error)
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Membership, error)
	GetMember(ctx context.Context, orgID, userID uuid.UUID) (*Membership, error)
	AddMember(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) (*Membership, error)
	UpdateMemberRole(ctx context.Context, orgID, userID uuid.UUID, role rbac.Role) error
	RemoveMember(ctx context.Context, orgID, userID uuid.UUID) error
}
