// Package audit records who did what, where, for security-relevant
// operations: logins, grants, role changes, and writes to scoped records.
package audit

import (
	"context"
	"time"
)

// Event statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Event is one audit record. TenantID and SiteID carry the actor's active
// scope so audit queries are row-filtered like any other scoped table.
type Event struct {
	ID        int64                  `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Status    string                 `json:"status"`
	UserID    string                 `json:"user_id,omitempty"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	SiteID    string                 `json:"site_id,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger records audit events
type Logger interface {
	Log(ctx context.Context, event *Event) error
}

// NopLogger discards events; used in tests and when auditing is disabled
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(context.Context, *Event) error { return nil }
