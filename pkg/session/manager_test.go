package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/rentfold/rentfold/pkg/identity"
)

// memStore is an in-memory Store for manager tests
type memStore struct {
	sessions map[string]*Session // by ID
	byToken  map[string]*Session
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*Session{}, byToken: map[string]*Session{}}
}

func (s *memStore) Insert(_ context.Context, sess *Session) error {
	cp := *sess
	s.sessions[sess.ID] = &cp
	s.byToken[sess.Token] = &cp
	return nil
}

func (s *memStore) GetByToken(_ context.Context, token string) (*Session, error) {
	sess, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) MarkRevoked(_ context.Context, id string) error {
	if sess, ok := s.sessions[id]; ok {
		sess.IsRevoked = true
	}
	return nil
}

func (s *memStore) RevokeAllForAdmin(_ context.Context, adminID int64) error {
	for _, sess := range s.sessions {
		if sess.AdminID == adminID {
			sess.IsRevoked = true
		}
	}
	return nil
}

func (s *memStore) TouchActivity(_ context.Context, id string, at time.Time) error {
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivityAt = at
	}
	return nil
}

func (s *memStore) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(s.byToken, sess.Token)
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeAdmins struct {
	admins map[int64]*identity.Admin
}

func (f *fakeAdmins) AdminByID(_ context.Context, id int64) (*identity.Admin, error) {
	return f.admins[id], nil
}

func activeAdmin(id int64) *fakeAdmins {
	return &fakeAdmins{admins: map[int64]*identity.Admin{
		id: {ID: id, Email: "ops@example.com", IsActive: true},
	}}
}

func TestCreateAndValidate(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), nil, 30*time.Minute, nil)

	sess, err := mgr.Create(context.Background(), 1, "10.0.0.1", "test-agent", nil)
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64) // 32 bytes hex encoded
	assert.NotEqual(t, sess.Token, sess.RefreshToken)

	got, admin, err := mgr.Validate(context.Background(), sess.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), admin.ID)
}

func TestValidateUnknownToken(t *testing.T) {
	mgr := NewManager(newMemStore(), activeAdmin(1), nil, 30*time.Minute, nil)

	sess, admin, err := mgr.Validate(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, admin)
}

func TestValidateExpiredMarksRevoked(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), nil, 30*time.Minute, nil)

	base := time.Now()
	mgr.now = func() time.Time { return base }
	sess, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)

	mgr.now = func() time.Time { return base.Add(31 * time.Minute) }
	got, _, err := mgr.Validate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Expiry is terminal: the stored row is revoked and a later validation
	// within a hypothetical new window still fails.
	assert.True(t, store.sessions[sess.ID].IsRevoked)
	mgr.now = func() time.Time { return base }
	got, _, err = mgr.Validate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateTouchesActivityNotExpiry(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), nil, 30*time.Minute, nil)

	base := time.Now()
	mgr.now = func() time.Time { return base }
	sess, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)
	originalExpiry := store.sessions[sess.ID].ExpiresAt

	later := base.Add(10 * time.Minute)
	mgr.now = func() time.Time { return later }
	_, _, err = mgr.Validate(context.Background(), sess.Token)
	require.NoError(t, err)

	assert.Equal(t, originalExpiry, store.sessions[sess.ID].ExpiresAt)
	assert.Equal(t, later, store.sessions[sess.ID].LastActivityAt)
}

func TestValidateRejectsDisabledAdmin(t *testing.T) {
	store := newMemStore()
	admins := &fakeAdmins{admins: map[int64]*identity.Admin{
		1: {ID: 1, IsActive: true},
	}}
	mgr := NewManager(store, admins, nil, 30*time.Minute, nil)

	sess, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)

	admins.admins[1].IsLocked = true
	got, _, err := mgr.Validate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRevokeAll(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), nil, 30*time.Minute, nil)

	s1, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)
	s2, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeAll(context.Background(), 1))

	for _, token := range []string{s1.Token, s2.Token} {
		got, _, err := mgr.Validate(context.Background(), token)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestCleanupExpired(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), nil, 30*time.Minute, nil)

	base := time.Now()
	mgr.now = func() time.Time { return base }
	_, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)
	fresh, err := mgr.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)
	store.sessions[fresh.ID].ExpiresAt = base.Add(2 * time.Hour)

	mgr.now = func() time.Time { return base.Add(time.Hour) }
	n, err := mgr.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.sessions, 1)
}

func TestGoogleTokensRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	store := newMemStore()
	mgr := NewManager(store, activeAdmin(1), cipher, 30*time.Minute, nil)

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	sess, err := mgr.Create(context.Background(), 1, "", "", &oauth2.Token{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		Expiry:       expiry,
	})
	require.NoError(t, err)

	// Nothing stored in the clear.
	assert.NotContains(t, sess.GoogleAccessToken, "ya29.access")
	assert.NotContains(t, sess.GoogleRefreshToken, "1//refresh")

	tok, err := mgr.GoogleTokens(sess)
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", tok.AccessToken)
	assert.Equal(t, "1//refresh", tok.RefreshToken)
	assert.Equal(t, expiry, tok.Expiry)
}

func TestGoogleTokensWithoutCipherNotPersisted(t *testing.T) {
	mgr := NewManager(newMemStore(), activeAdmin(1), nil, 30*time.Minute, nil)

	sess, err := mgr.Create(context.Background(), 1, "", "", &oauth2.Token{AccessToken: "secret"})
	require.NoError(t, err)
	assert.Empty(t, sess.GoogleAccessToken)

	tok, err := mgr.GoogleTokens(sess)
	require.NoError(t, err)
	assert.Nil(t, tok)
}
