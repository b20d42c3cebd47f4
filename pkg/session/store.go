package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists admin sessions
type Store interface {
	Insert(ctx context.Context, s *Session) error
	// GetByToken returns the session with the given token, or nil when no
	// row matches. Revoked and expired rows are returned as-is; the
	// Manager decides what they mean.
	GetByToken(ctx context.Context, token string) (*Session, error)
	MarkRevoked(ctx context.Context, id string) error
	RevokeAllForAdmin(ctx context.Context, adminID int64) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
	// DeleteExpired hard-deletes rows whose expiry is before the cutoff
	// and returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PostgresStore implements Store against PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL session store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert persists a new session row
func (s *PostgresStore) Insert(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (
			id, token, refresh_token, admin_id, expires_at, is_revoked,
			last_activity_at, ip_address, user_agent,
			google_access_token, google_refresh_token, google_token_expiry,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, sess.ID, sess.Token, sess.RefreshToken, sess.AdminID, sess.ExpiresAt,
		sess.IsRevoked, sess.LastActivityAt, sess.IPAddress, sess.UserAgent,
		nullable(sess.GoogleAccessToken), nullable(sess.GoogleRefreshToken),
		sess.GoogleTokenExpiry, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetByToken returns the session with the given token, or nil
func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	sess := &Session{}
	var accessToken, refreshToken sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, refresh_token, admin_id, expires_at, is_revoked,
			last_activity_at, ip_address, user_agent,
			google_access_token, google_refresh_token, google_token_expiry,
			created_at
		FROM admin_sessions
		WHERE token = $1
	`, token).Scan(&sess.ID, &sess.Token, &sess.RefreshToken, &sess.AdminID,
		&sess.ExpiresAt, &sess.IsRevoked, &sess.LastActivityAt,
		&sess.IPAddress, &sess.UserAgent,
		&accessToken, &refreshToken, &sess.GoogleTokenExpiry, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	sess.GoogleAccessToken = accessToken.String
	sess.GoogleRefreshToken = refreshToken.String
	return sess, nil
}

// MarkRevoked soft-deletes a session
func (s *PostgresStore) MarkRevoked(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admin_sessions SET is_revoked = true WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RevokeAllForAdmin soft-deletes every session owned by an admin
func (s *PostgresStore) RevokeAllForAdmin(ctx context.Context, adminID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admin_sessions SET is_revoked = true WHERE admin_id = $1
	`, adminID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// TouchActivity updates the last-activity timestamp without extending
// expiry
func (s *PostgresStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admin_sessions SET last_activity_at = $1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeleteExpired hard-deletes sessions that expired before the cutoff
func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM admin_sessions WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
