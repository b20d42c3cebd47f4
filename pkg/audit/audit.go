// Package audit records security-relevant events: admin sign-ins and
// sign-outs, session revocations, and quota enforcement. The trail is the
// record of who held the keys when.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventType names an auditable event
type EventType string

const (
	EventAdminLogin       EventType = "admin.login"
	EventAdminLoginFailed EventType = "admin.login_failed"
	EventAdminLogout      EventType = "admin.logout"
	EventAdminLogoutAll   EventType = "admin.logout_all"
	EventSessionCleanup   EventType = "session.cleanup"
	EventQuotaExceeded    EventType = "quota.exceeded"
)

// Event is one audit record. AdminID is nil for events with no
// authenticated admin (failed logins, quota rejections).
type Event struct {
	Type      EventType
	AdminID   *int64
	Email     string
	IPAddress string
	Detail    string
	CreatedAt time.Time
}

// Logger records audit events. Recording must never fail the operation
// being audited; implementations return errors for the caller to log,
// not to propagate.
type Logger interface {
	Log(ctx context.Context, e *Event) error
}

// DBLogger writes audit events to the audit_events table
type DBLogger struct {
	db  *sql.DB
	now func() time.Time
}

// NewDBLogger creates a Postgres-backed audit logger
func NewDBLogger(db *sql.DB) *DBLogger {
	return &DBLogger{db: db, now: time.Now}
}

// Log implements Logger
func (l *DBLogger) Log(ctx context.Context, e *Event) error {
	at := e.CreatedAt
	if at.IsZero() {
		at = l.now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_type, admin_id, email, ip_address, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(e.Type), e.AdminID, e.Email, e.IPAddress, e.Detail, at)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// NopLogger discards events. Used when auditing is not configured and in
// tests that do not assert on the trail.
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(context.Context, *Event) error { return nil }
