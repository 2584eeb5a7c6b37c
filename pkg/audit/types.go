package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Admin events
	EventTypeAdminOrgCreate  EventType = "admin.org_create"
	EventTypeAdminUserCreate EventType = "admin.user_create"

	// Membership events
	EventTypeMemberAdd        EventType = "org.member_add"
	EventTypeMemberRoleChange EventType = "org.member_role_change"
	EventTypeMemberRemove     EventType = "org.member_remove"

	// Billing events
	EventTypeSubscriptionUpdate EventType = "billing.subscription_update"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource acted on
type ResourceType string

const (
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeOrganization ResourceType = "organization"
	ResourceTypeMembership   ResourceType = "membership"
	ResourceTypeSubscription ResourceType = "subscription"
)

// Event is a single audit record
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	UserEmail string     `json:"user_email,omitempty"`

	// Tenant and target
	OrganizationID *uuid.UUID   `json:"organization_id,omitempty"`
	ResourceType   ResourceType `json:"resource_type,omitempty"`
	ResourceID     string       `json:"resource_id,omitempty"`

	// Request
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Changes  *ChangeDetails         `json:"changes,omitempty"`
}

// ChangeDetails captures before and after values of a mutation
type ChangeDetails struct {
	Before map[string]interface{} `json:"before,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

// SearchFilter narrows an event search. Zero values are ignored.
type SearchFilter struct {
	OrganizationID *uuid.UUID
	UserID         *uuid.UUID
	EventTypes     []EventType
	StartTime      *time.Time
	EndTime        *time.Time

	Limit  int
	Offset int
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

func (f SearchFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultSearchLimit
	case f.Limit > maxSearchLimit:
		return maxSearchLimit
	default:
		return f.Limit
	}
}
