package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DBLogger writes audit events to the audit_events table. The table is
// created by the storage migrations.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts the event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	metadata, err := marshalJSON(event.Metadata, len(event.Metadata) == 0)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	changes, err := marshalJSON(event.Changes, event.Changes == nil)
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (
			occurred_at, event_type, status, user_id, user_email,
			organization_id, resource_type, resource_id, ip_address,
			request_id, message, metadata, changes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp,
		string(event.EventType),
		string(event.Status),
		nullUUID(event.UserID),
		event.UserEmail,
		nullUUID(event.OrganizationID),
		string(event.ResourceType),
		event.ResourceID,
		event.IPAddress,
		event.RequestID,
		event.Message,
		metadata,
		changes,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the connection is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

// Search returns events matching the filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	var conditions []string
	var args []interface{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.OrganizationID != nil {
		add("organization_id = $%d", *filter.OrganizationID)
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		add("event_type = ANY($%d)", pq.Array(types))
	}
	if filter.StartTime != nil {
		add("occurred_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("occurred_at <= $%d", *filter.EndTime)
	}

	query := `
		SELECT id, occurred_at, event_type, status, user_id, user_email,
		       organization_id, resource_type, resource_id, ip_address,
		       request_id, message, metadata, changes
		FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit(), filter.Offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Cleanup deletes events older than before and reports how many were removed
func (l *DBLogger) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_events WHERE occurred_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed audit events: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		event             Event
		eventType, status string
		resourceType      string
		userID, orgID     uuid.NullUUID
		metadata, changes []byte
	)
	err := rows.Scan(
		&event.ID, &event.Timestamp, &eventType, &status, &userID, &event.UserEmail,
		&orgID, &resourceType, &event.ResourceID, &event.IPAddress,
		&event.RequestID, &event.Message, &metadata, &changes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	event.EventType = EventType(eventType)
	event.Status = EventStatus(status)
	event.ResourceType = ResourceType(resourceType)
	if userID.Valid {
		event.UserID = &userID.UUID
	}
	if orgID.Valid {
		event.OrganizationID = &orgID.UUID
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if len(changes) > 0 {
		event.Changes = &ChangeDetails{}
		if err := json.Unmarshal(changes, event.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes: %w", err)
		}
	}
	return &event, nil
}

func marshalJSON(v interface{}, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
