// Package session manages credentials for inbound requests.
//
// Admins authenticate with an opaque cookie token backed by a persisted
// session row with a fixed TTL. Validation refreshes the activity
// timestamp but never extends expiry; an expired session is revoked on
// first sight and never revalidated. Non-admin actors ride on a web
// session issued by the identity provider, consumed here through the
// Source interface.
package session

import (
	"time"
)

// Session is a persisted admin session. Token and RefreshToken are opaque
// 32-byte hex values generated from a cryptographically secure source.
// Google OAuth tokens captured at login are stored encrypted; see
// TokenCipher.
type Session struct {
	ID             string
	Token          string
	RefreshToken   string
	AdminID        int64
	ExpiresAt      time.Time
	IsRevoked      bool
	LastActivityAt time.Time
	IPAddress      string
	UserAgent      string

	GoogleAccessToken  string
	GoogleRefreshToken string
	GoogleTokenExpiry  *time.Time

	CreatedAt time.Time
}

// Expired reports whether the session TTL has elapsed at the given instant
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// DefaultMaxAge is the admin session TTL when none is configured (30 min)
const DefaultMaxAge = 30 * time.Minute
