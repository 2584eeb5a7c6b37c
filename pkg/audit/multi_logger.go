package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/agronomy/pkg/observability"
)

// MultiLogger sends each event to every configured logger
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger fanning out to loggers. Nil entries are
// skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to all loggers. Every logger is tried; the errors are
// joined.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for i, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("logger %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StructuredLogger writes events as structured entries on the application
// log
type StructuredLogger struct {
	logger *observability.Logger
}

// NewStructuredLogger creates a logger writing through logger
func NewStructuredLogger(logger *observability.Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger.WithField("audit", true)}
}

// Log writes one info entry per event
func (l *StructuredLogger) Log(_ context.Context, event *Event) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != nil {
		fields["actor_id"] = event.UserID.String()
	}
	if event.UserEmail != "" {
		fields["actor_email"] = event.UserEmail
	}
	if event.OrganizationID != nil {
		fields["audit_organization_id"] = event.OrganizationID.String()
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	l.logger.WithFields(fields).Info(msg)
	return nil
}

// Close is a no-op
func (l *StructuredLogger) Close() error {
	return nil
}
