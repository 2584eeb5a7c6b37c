package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/agronomy/pkg/contextkeys"
	"github.com/platinummonkey/agronomy/pkg/httputil"
	"github.com/platinummonkey/agronomy/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records a single event
	Log(ctx context.Context, event *Event) error

	// Close releases any resources held by the logger
	Close() error
}

// Store provides read and retention access to recorded events
type Store interface {
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// NopLogger discards every event
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// NewEvent builds an event from the request. The actor, organization and
// request id are taken from the request context when present.
func NewEvent(r *http.Request, eventType EventType, status EventStatus) *Event {
	ctx := r.Context()
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		IPAddress: httputil.ClientIP(r),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if id, err := uuid.Parse(contextkeys.GetUserID(ctx)); err == nil {
		event.UserID = &id
	}
	if id, err := uuid.Parse(contextkeys.GetOrgID(ctx)); err == nil {
		event.OrganizationID = &id
	}
	return event
}

// Record logs the event. Failures are written to the request log and never
// returned.
func Record(ctx context.Context, logger Logger, event *Event) {
	if logger == nil || event == nil {
		return
	}
	if err := logger.Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("failed to record audit event")
	}
}
