// Package audit records security relevant actions: logins, organization and
// user administration, membership changes and subscription updates.
//
// # Recording
//
// Handlers build an event from the request and hand it to a Logger:
//
//	event := audit.NewEvent(r, audit.EventTypeMemberAdd, audit.EventStatusSuccess)
//	event.OrganizationID = &orgID
//	event.ResourceType = audit.ResourceTypeMembership
//	audit.Record(ctx, logger, event)
//
// Record never fails the caller; a logger error is written to the request
// log instead.
//
// # Backends
//
// DBLogger writes to the audit_events table and implements Store for search
// and retention cleanup. StructuredLogger writes events to the application
// log. MultiLogger fans out to several loggers.
package audit
