package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/session"
)

func buildPage(store identity.Store, web *fakeWebSource, admins *session.Manager) *PageMiddleware {
	logger := testLogger()
	dir := identity.NewDirectory(store, nil, nil)
	resolver := authz.NewResolver(dir, authz.DefaultRouteTable(), logger, nil)
	return NewPageMiddleware(resolver, store, admins, web, logger)
}

func TestWithPageRedirectsToLogin(t *testing.T) {
	page := buildPage(newFakeStore(), &fakeWebSource{}, nil)
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestWithPageRedirectsToRegistration(t *testing.T) {
	page := buildPage(newFakeStore(), &fakeWebSource{email: "new@example.com"}, nil)
	h := page.WithPage(PageOptions{
		Roles:            []authz.Role{authz.RoleLandlord},
		RegistrationPath: "/auth/complete-registration",
	}, func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/complete-registration", rec.Header().Get("Location"))
}

func TestWithPageRedirectsToPendingApproval(t *testing.T) {
	store := newFakeStore()
	store.landlords["pending@example.com"] = &identity.Landlord{
		ID: 1, Email: "pending@example.com", ApprovalStatus: identity.StatusPending,
	}
	page := buildPage(store, &fakeWebSource{email: "pending@example.com"}, nil)
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, PendingApprovalPath, rec.Header().Get("Location"))
}

func TestWithPageServesApprovedActor(t *testing.T) {
	store := newFakeStore()
	store.landlords["alice@example.com"] = &identity.Landlord{
		ID: 1, Email: "alice@example.com", FirstName: "Alice", LastName: "Ames",
		ApprovalStatus: identity.StatusApproved,
	}
	page := buildPage(store, &fakeWebSource{email: "alice@example.com"}, nil)

	var got authz.UserContext
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {
			got, _ = authz.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("GET", "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, authz.RoleLandlord, got.Role())
	assert.Equal(t, "Alice Ames", got.ActorName())
}

func TestWithPageAdminSession(t *testing.T) {
	store, sessions, token := adminSessionSetup(t)
	page := buildPage(store, &fakeWebSource{}, sessions)

	var got authz.UserContext
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {
			got, _ = authz.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: token})
	rec := httptest.NewRecorder()
	h(rec, req)

	// A valid admin session is served directly, never bounced to login.
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, authz.RoleAdmin, got.Role())
}

func TestWithPageAdminDelegation(t *testing.T) {
	store, sessions, token := adminSessionSetup(t)
	store.grants[1] = &identity.UserRole{UserID: 1, Role: identity.RolePMCAdmin, PMCID: int64Ptr(9), IsActive: true}
	store.companies[9] = &identity.ManagementCompany{
		ID: 9, Email: "pmc@example.com", Name: "Propco", ApprovalStatus: identity.StatusApproved,
	}
	page := buildPage(store, &fakeWebSource{}, sessions)

	var got authz.UserContext
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {
			got, _ = authz.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: token})
	rec := httptest.NewRecorder()
	h(rec, req)

	// The PMC-Admin is dispatched as the company on a landlord page, and
	// the context carries the company's display name.
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	cc, ok := got.(*authz.CompanyContext)
	require.True(t, ok)
	assert.Equal(t, int64(9), cc.ActorID())
	assert.Equal(t, "Propco", cc.ActorName())
	assert.True(t, cc.Delegated)
}

func TestWithPageStaleAdminCookieFallsThrough(t *testing.T) {
	store, sessions, _ := adminSessionSetup(t)
	store.landlords["alice@example.com"] = &identity.Landlord{
		ID: 5, Email: "alice@example.com", ApprovalStatus: identity.StatusApproved,
	}
	page := buildPage(store, &fakeWebSource{email: "alice@example.com"}, sessions)

	var got authz.UserContext
	h := page.WithPage(PageOptions{Roles: []authz.Role{authz.RoleLandlord}},
		func(w http.ResponseWriter, r *http.Request) {
			got, _ = authz.FromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		})

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAdminCookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, authz.RoleLandlord, got.Role())
}
