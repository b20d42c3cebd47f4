package middleware

import (
	"context"
	"net/http"

	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/contextkeys"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/session"
)

// Default redirect targets for server-rendered pages
const (
	LoginPath           = "/auth/login"
	PendingApprovalPath = "/pending-approval"
)

// PageOptions declares a page's authorization requirements. Pages differ
// from API routes in two ways: the permitted roles are known statically,
// so only the tables they imply are queried; and failures redirect the
// browser instead of returning JSON.
type PageOptions struct {
	// Roles the page serves, in no particular order; resolution applies
	// the fixed priority.
	Roles []authz.Role
	// RegistrationPath receives users whose email maps to no actor at
	// all. Empty falls back to the login page.
	RegistrationPath string
}

// PageMiddleware authorizes server-rendered pages. Like the API pipeline
// it probes the admin session cookie before the web session; a valid admin
// session is terminal.
type PageMiddleware struct {
	resolver *authz.Resolver
	store    identity.Store
	admins   *session.Manager
	web      session.Source
	logger   *observability.Logger
	cookie   string
}

// NewPageMiddleware creates the page middleware. admins may be nil to
// disable the admin-session probe.
func NewPageMiddleware(resolver *authz.Resolver, store identity.Store, admins *session.Manager, web session.Source, logger *observability.Logger) *PageMiddleware {
	return &PageMiddleware{
		resolver: resolver,
		store:    store,
		admins:   admins,
		web:      web,
		logger:   logger,
		cookie:   DefaultAdminCookieName,
	}
}

// SetAdminCookieName overrides the admin session cookie name
func (m *PageMiddleware) SetAdminCookieName(name string) {
	if name != "" {
		m.cookie = name
	}
}

// WithPage wraps a page handler. Unauthenticated browsers are sent to the
// login page, unknown emails to registration, unapproved actors to the
// pending-approval page.
func (m *PageMiddleware) WithPage(opts PageOptions, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.admins != nil {
			if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
				sess, admin, err := m.admins.Validate(r.Context(), c.Value)
				if err != nil {
					m.fail(w, r, err)
					return
				}
				if admin != nil {
					uc, err := m.resolver.ResolveAdminPage(r.Context(), admin, opts.Roles)
					if err != nil {
						m.fail(w, r, err)
						return
					}
					ctx := contextkeys.WithUserContext(r.Context(), uc)
					ctx = contextkeys.WithAdminSession(ctx, sess)
					next(w, r.WithContext(ctx))
					return
				}
				// A stale admin cookie falls through to the web session;
				// the browser may hold both.
			}
		}

		ws, err := m.web.GetSession(r)
		if err != nil {
			m.fail(w, r, err)
			return
		}
		if ws == nil {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		uc, err := m.resolver.ResolvePage(r.Context(), ws.Email, opts.Roles)
		if err != nil {
			if _, ok := authz.AsApprovalError(err); ok {
				http.Redirect(w, r, PendingApprovalPath, http.StatusFound)
				return
			}
			if err == authz.ErrNoIdentity {
				target := opts.RegistrationPath
				if target == "" {
					target = LoginPath
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			m.fail(w, r, err)
			return
		}

		ctx := contextkeys.WithUserContext(r.Context(), uc)
		next(w, r.WithContext(ctx))
	}
}

// ManagedBy returns the management company actively managing a landlord,
// or nil. Landlord pages use it to render the managing-company banner.
func (m *PageMiddleware) ManagedBy(ctx context.Context, landlordID int64) (*identity.ManagingCompany, error) {
	return m.store.LandlordManagedBy(ctx, landlordID)
}

func (m *PageMiddleware) fail(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.WithError(err).
		WithField("path", r.URL.Path).
		WithField("request_id", contextkeys.GetRequestID(r.Context())).
		Error("page authorization failure")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
