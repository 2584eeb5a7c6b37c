package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/audit"
	"github.com/platinummonkey/agronomy/pkg/orgs"
)

func auditLogger(l audit.Logger) audit.Logger {
	if l == nil {
		return audit.NopLogger{}
	}
	return l
}

// membershipEvent describes a change to a membership in orgID
func membershipEvent(r *http.Request, eventType audit.EventType, orgID, userID uuid.UUID) *audit.Event {
	event := audit.NewEvent(r, eventType, audit.EventStatusSuccess)
	event.OrganizationID = &orgID
	event.ResourceType = audit.ResourceTypeMembership
	event.ResourceID = userID.String()
	return event
}

func memberAdded(r *http.Request, m *orgs.Membership) *audit.Event {
	event := membershipEvent(r, audit.EventTypeMemberAdd, m.OrganizationID, m.UserID)
	event.Metadata["role"] = string(m.Role)
	if m.UserEmail != "" {
		event.Metadata["member_email"] = m.UserEmail
	}
	return event
}
