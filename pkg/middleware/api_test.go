package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/orgs"
	"github.com/rentfold/rentfold/pkg/quota"
	"github.com/rentfold/rentfold/pkg/session"
)

// fakeStore is a minimal identity.Store for middleware tests
type fakeStore struct {
	landlords map[string]*identity.Landlord
	tenants   map[string]*identity.Tenant
	providers map[string]*identity.ServiceProvider
	admins    map[int64]*identity.Admin
	grants    map[int64]*identity.UserRole
	companies map[int64]*identity.ManagementCompany
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		landlords: map[string]*identity.Landlord{},
		tenants:   map[string]*identity.Tenant{},
		providers: map[string]*identity.ServiceProvider{},
		admins:    map[int64]*identity.Admin{},
		grants:    map[int64]*identity.UserRole{},
		companies: map[int64]*identity.ManagementCompany{},
	}
}

func (s *fakeStore) LandlordByEmail(_ context.Context, email string) (*identity.Landlord, error) {
	return s.landlords[email], nil
}
func (s *fakeStore) TenantByEmail(_ context.Context, email string) (*identity.Tenant, error) {
	return s.tenants[email], nil
}
func (s *fakeStore) ProviderByEmail(_ context.Context, email string, kind identity.ProviderKind) (*identity.ServiceProvider, error) {
	p := s.providers[email]
	if p == nil || p.Kind != kind {
		return nil, nil
	}
	return p, nil
}
func (s *fakeStore) CompanyByEmail(context.Context, string) (*identity.ManagementCompany, error) {
	return nil, nil
}
func (s *fakeStore) CompanyByID(_ context.Context, id int64) (*identity.ManagementCompany, error) {
	return s.companies[id], nil
}
func (s *fakeStore) AdminByEmail(context.Context, string) (*identity.Admin, error) {
	return nil, nil
}
func (s *fakeStore) AdminByID(_ context.Context, id int64) (*identity.Admin, error) {
	return s.admins[id], nil
}
func (s *fakeStore) PMCAdminGrant(_ context.Context, adminID int64) (*identity.UserRole, error) {
	return s.grants[adminID], nil
}
func (s *fakeStore) TenantOrganization(context.Context, int64) (*int64, error) {
	return nil, nil
}
func (s *fakeStore) LandlordManagedBy(context.Context, int64) (*identity.ManagingCompany, error) {
	return nil, nil
}

// fakeWebSource returns a fixed email, or nothing
type fakeWebSource struct {
	email string
}

func (f *fakeWebSource) GetSession(*http.Request) (*session.WebSession, error) {
	if f.email == "" {
		return nil, nil
	}
	return &session.WebSession{Email: f.email}, nil
}

// memSessionStore is an in-memory session.Store
type memSessionStore struct {
	byToken map[string]*session.Session
}

func (s *memSessionStore) Insert(_ context.Context, sess *session.Session) error {
	s.byToken[sess.Token] = sess
	return nil
}
func (s *memSessionStore) GetByToken(_ context.Context, token string) (*session.Session, error) {
	return s.byToken[token], nil
}
func (s *memSessionStore) MarkRevoked(_ context.Context, id string) error {
	for _, sess := range s.byToken {
		if sess.ID == id {
			sess.IsRevoked = true
		}
	}
	return nil
}
func (s *memSessionStore) RevokeAllForAdmin(context.Context, int64) error { return nil }
func (s *memSessionStore) TouchActivity(context.Context, string, time.Time) error {
	return nil
}
func (s *memSessionStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeOrgs struct {
	limit *int64
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id int64) (*orgs.Organization, error) {
	return &orgs.Organization{ID: id, Name: "Acme", MaxAPICallsPerMonth: f.limit}, nil
}

func int64Ptr(v int64) *int64 { return &v }

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func buildAuth(store identity.Store, web session.Source, tracker *quota.Tracker, sessions *session.Manager) *AuthMiddleware {
	logger := testLogger()
	dir := identity.NewDirectory(store, nil, nil)
	resolver := authz.NewResolver(dir, authz.DefaultRouteTable(), logger, nil)
	return NewAuthMiddleware(resolver, sessions, web, tracker, logger, nil, true)
}

// echoHandler records the resolved user context
func echoHandler(got *authz.UserContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uc, _ := authz.FromContext(r.Context())
		*got = uc
		w.WriteHeader(http.StatusOK)
	}
}

func TestWithAuthMethodNotAllowed(t *testing.T) {
	auth := buildAuth(newFakeStore(), &fakeWebSource{}, nil, nil)
	var got authz.UserContext
	h := auth.WithAuth(Options{AllowedMethods: []string{"GET"}}, echoHandler(&got))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("DELETE", "/api/v1/messages", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Nil(t, got)
}

func TestWithAuthNoSession(t *testing.T) {
	auth := buildAuth(newFakeStore(), &fakeWebSource{}, nil, nil)
	var got authz.UserContext
	h := auth.WithAuth(Options{}, echoHandler(&got))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/v1/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestWithAuthSkipAuth(t *testing.T) {
	auth := buildAuth(newFakeStore(), &fakeWebSource{}, nil, nil)
	var got authz.UserContext
	h := auth.WithAuth(Options{SkipAuth: true}, echoHandler(&got))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/v1/public", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	_, ok := got.(*authz.AnonymousContext)
	assert.True(t, ok)
}

func TestWithAuthApprovalStatusInBody(t *testing.T) {
	store := newFakeStore()
	store.landlords["pending@example.com"] = &identity.Landlord{
		ID: 1, Email: "pending@example.com", ApprovalStatus: identity.StatusPending,
	}
	auth := buildAuth(store, &fakeWebSource{email: "pending@example.com"}, nil, nil)
	var got authz.UserContext
	h := auth.WithAuth(Options{}, echoHandler(&got))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/properties", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PENDING", body["approvalStatus"])
	assert.Nil(t, got)
}

func TestWithAuthUnknownUser(t *testing.T) {
	auth := buildAuth(newFakeStore(), &fakeWebSource{email: "ghost@example.com"}, nil, nil)
	h := auth.WithAuth(Options{}, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/v1/messages", nil))
	// The session was valid but no actor record matched, so the failure is
	// an authorization one, not a missing credential.
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "User not found", body["error"])
}

func TestWithAuthRouteRoleMismatch(t *testing.T) {
	store := newFakeStore()
	store.providers["vendor@example.com"] = &identity.ServiceProvider{
		ID: 2, Email: "vendor@example.com", Kind: identity.KindVendor,
	}
	auth := buildAuth(store, &fakeWebSource{email: "vendor@example.com"}, nil, nil)
	h := auth.WithAuth(Options{}, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/properties", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithAuthQuotaHeadersAnd429(t *testing.T) {
	store := newFakeStore()
	store.landlords["alice@example.com"] = &identity.Landlord{
		ID: 1, Email: "alice@example.com", ApprovalStatus: identity.StatusApproved,
		OrganizationID: int64Ptr(10),
	}
	tracker := quota.NewTracker(&fakeOrgs{limit: int64Ptr(2)}, quota.NewMemoryStore(), testLogger(), nil)
	auth := buildAuth(store, &fakeWebSource{email: "alice@example.com"}, tracker, nil)
	h := auth.WithAuth(Options{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest("GET", "/api/properties", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/properties", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "quota")
}

func TestWithAuthNoQuotaForOrglessActor(t *testing.T) {
	store := newFakeStore()
	store.landlords["solo@example.com"] = &identity.Landlord{
		ID: 1, Email: "solo@example.com", ApprovalStatus: identity.StatusApproved,
	}
	tracker := quota.NewTracker(&fakeOrgs{limit: int64Ptr(0)}, quota.NewMemoryStore(), testLogger(), nil)
	auth := buildAuth(store, &fakeWebSource{email: "solo@example.com"}, tracker, nil)
	h := auth.WithAuth(Options{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/properties", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func adminSessionSetup(t *testing.T) (*fakeStore, *session.Manager, string) {
	t.Helper()
	store := newFakeStore()
	store.admins[1] = &identity.Admin{ID: 1, Email: "ops@example.com", Name: "Ops", IsActive: true}

	sessions := session.NewManager(&memSessionStore{byToken: map[string]*session.Session{}}, store, nil, 30*time.Minute, nil)
	sess, err := sessions.Create(context.Background(), 1, "", "", nil)
	require.NoError(t, err)
	return store, sessions, sess.Token
}

func TestWithAuthAdminCookie(t *testing.T) {
	store, sessions, token := adminSessionSetup(t)
	auth := buildAuth(store, &fakeWebSource{}, nil, sessions)
	var got authz.UserContext
	h := auth.WithAuth(Options{}, echoHandler(&got))

	req := httptest.NewRequest("GET", "/api/v1/reports", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: token})
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, authz.RoleAdmin, got.Role())
}

func TestWithAuthDisallowAdmin(t *testing.T) {
	store, sessions, token := adminSessionSetup(t)
	auth := buildAuth(store, &fakeWebSource{}, nil, sessions)
	h := auth.WithAuth(Options{DisallowAdmin: true}, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/api/v1/reports", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: token})
	rec := httptest.NewRecorder()
	h(rec, req)

	// The admin cookie is ignored and there is no web session, so the
	// request is unauthenticated.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWithAuthStaleAdminCookieFallsThrough(t *testing.T) {
	store, sessions, _ := adminSessionSetup(t)
	store.landlords["alice@example.com"] = &identity.Landlord{
		ID: 5, Email: "alice@example.com", ApprovalStatus: identity.StatusApproved,
	}
	auth := buildAuth(store, &fakeWebSource{email: "alice@example.com"}, nil, sessions)
	var got authz.UserContext
	h := auth.WithAuth(Options{}, echoHandler(&got))

	req := httptest.NewRequest("GET", "/api/properties", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, authz.RoleLandlord, got.Role())
}

func TestWithAuthRequireRole(t *testing.T) {
	store := newFakeStore()
	store.tenants["tess@example.com"] = &identity.Tenant{
		ID: 3, Email: "tess@example.com", ApprovalStatus: identity.StatusApproved,
	}
	auth := buildAuth(store, &fakeWebSource{email: "tess@example.com"}, nil, nil)
	h := auth.WithAuth(Options{RequireRole: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/api/v1/messages", nil))
	// The tenant identity is filtered out during resolution; the rejection
	// is a 403 naming the required role, not an unknown-user error.
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "landlord")
}
