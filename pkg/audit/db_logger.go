package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger persists audit events to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database audit logger and ensures its table
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id UUID,
		tenant_id UUID,
		site_id UUID,
		resource VARCHAR(255),
		request_id VARCHAR(100),
		message TEXT,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_id ON audit_logs(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_site_id ON audit_logs(site_id);
	`
	_, err := l.db.Exec(query)
	return err
}

// Log inserts one audit event
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (
			timestamp, event_type, status, user_id, tenant_id, site_id,
			resource, request_id, message, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		event.Timestamp, event.EventType, event.Status,
		nullable(event.UserID), nullable(event.TenantID), nullable(event.SiteID),
		nullable(event.Resource), nullable(event.RequestID), nullable(event.Message),
		metadataJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List returns events matching the given filters, newest first. The WHERE
// fragment comes from the scope filter builder plus optional event filters.
func (l *DBLogger) List(ctx context.Context, where string, args []interface{}, limit, offset int) ([]Event, error) {
	query := `
		SELECT id, timestamp, event_type, status,
		       COALESCE(user_id::text, ''), COALESCE(tenant_id::text, ''), COALESCE(site_id::text, ''),
		       COALESCE(resource, ''), COALESCE(request_id, ''), COALESCE(message, ''), metadata
		FROM audit_logs`
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.EventType, &e.Status,
			&e.UserID, &e.TenantID, &e.SiteID,
			&e.Resource, &e.RequestID, &e.Message, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
