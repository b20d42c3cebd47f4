package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/observability"
)

// AdminLookup is the slice of the identity store the manager needs
type AdminLookup interface {
	AdminByID(ctx context.Context, id int64) (*identity.Admin, error)
}

// Manager owns the admin session lifecycle
type Manager struct {
	store   Store
	admins  AdminLookup
	cipher  *TokenCipher
	maxAge  time.Duration
	metrics *observability.Metrics
	now     func() time.Time
}

// NewManager creates a session manager. cipher may be nil; OAuth tokens
// are then not persisted at all rather than stored in plaintext. metrics
// may be nil.
func NewManager(store Store, admins AdminLookup, cipher *TokenCipher, maxAge time.Duration, metrics *observability.Metrics) *Manager {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Manager{
		store:   store,
		admins:  admins,
		cipher:  cipher,
		maxAge:  maxAge,
		metrics: metrics,
		now:     time.Now,
	}
}

// generateToken returns 32 random bytes hex encoded
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create opens a new session for an admin. googleTokens may be nil when
// the admin signed in with a password.
func (m *Manager) Create(ctx context.Context, adminID int64, ip, userAgent string, googleTokens *oauth2.Token) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	refreshToken, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	sess := &Session{
		ID:             uuid.NewString(),
		Token:          token,
		RefreshToken:   refreshToken,
		AdminID:        adminID,
		ExpiresAt:      now.Add(m.maxAge),
		LastActivityAt: now,
		IPAddress:      ip,
		UserAgent:      userAgent,
		CreatedAt:      now,
	}

	if googleTokens != nil && m.cipher != nil {
		if sess.GoogleAccessToken, err = m.cipher.Encrypt(googleTokens.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to encrypt access token: %w", err)
		}
		if googleTokens.RefreshToken != "" {
			if sess.GoogleRefreshToken, err = m.cipher.Encrypt(googleTokens.RefreshToken); err != nil {
				return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
			}
		}
		if !googleTokens.Expiry.IsZero() {
			expiry := googleTokens.Expiry
			sess.GoogleTokenExpiry = &expiry
		}
	}

	if err := m.store.Insert(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate resolves a cookie token to a live session and its owning admin.
// Returns (nil, nil, nil) when the token does not map to a usable session:
// unknown token, revoked, expired (revoked as a side effect), or an owner
// that is missing, inactive, or locked. Expiry is an expected state
// transition, not an error. Infrastructure failures are returned as
// errors.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, *identity.Admin, error) {
	sess, err := m.store.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.IsRevoked {
		m.count("rejected")
		return nil, nil, nil
	}

	now := m.now()
	if sess.Expired(now) {
		// Terminal: once expired, the session is revoked and never
		// revalidated. A concurrent double-revoke is benign.
		if err := m.store.MarkRevoked(ctx, sess.ID); err != nil {
			return nil, nil, err
		}
		m.count("expired")
		return nil, nil, nil
	}

	admin, err := m.admins.AdminByID(ctx, sess.AdminID)
	if err != nil {
		return nil, nil, err
	}
	if admin == nil || !admin.IsActive || admin.IsLocked {
		m.count("rejected")
		return nil, nil, nil
	}

	if err := m.store.TouchActivity(ctx, sess.ID, now); err != nil {
		return nil, nil, err
	}

	m.count("ok")
	return sess, admin, nil
}

// Revoke soft-deletes a single session
func (m *Manager) Revoke(ctx context.Context, id string) error {
	return m.store.MarkRevoked(ctx, id)
}

// RevokeAll soft-deletes every session owned by an admin
func (m *Manager) RevokeAll(ctx context.Context, adminID int64) error {
	return m.store.RevokeAllForAdmin(ctx, adminID)
}

// CleanupExpired hard-deletes expired rows. Run on a schedule.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err == nil && m.metrics != nil {
		m.metrics.SessionsCleanedTotal.Add(float64(n))
	}
	return n, err
}

// GoogleTokens decrypts the OAuth tokens stored on a session. Returns nil
// when none were captured or no cipher is configured.
func (m *Manager) GoogleTokens(sess *Session) (*oauth2.Token, error) {
	if m.cipher == nil || sess.GoogleAccessToken == "" {
		return nil, nil
	}
	access, err := m.cipher.Decrypt(sess.GoogleAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	tok := &oauth2.Token{AccessToken: access}
	if sess.GoogleRefreshToken != "" {
		if tok.RefreshToken, err = m.cipher.Decrypt(sess.GoogleRefreshToken); err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}
	if sess.GoogleTokenExpiry != nil {
		tok.Expiry = *sess.GoogleTokenExpiry
	}
	return tok, nil
}

func (m *Manager) count(outcome string) {
	if m.metrics != nil {
		m.metrics.SessionValidationsTotal.WithLabelValues(outcome).Inc()
	}
}
