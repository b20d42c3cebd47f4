package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rentfold/rentfold/pkg/async"
	"github.com/rentfold/rentfold/pkg/audit"
	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/contextkeys"
	"github.com/rentfold/rentfold/pkg/httputil"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/quota"
	"github.com/rentfold/rentfold/pkg/session"
)

// DefaultAdminCookieName is the cookie carrying the opaque admin session
// token unless configured otherwise
const DefaultAdminCookieName = "admin_session"

// Options declares a handler's authorization requirements
type Options struct {
	// AllowedMethods restricts HTTP methods; empty allows any. Checked
	// before authentication so a bad method never burns quota.
	AllowedMethods []string
	// RequireRole is the permitted-role set; empty permits every role.
	// The set also participates in resolution: it gates PMC delegation
	// and the direct-match deference rule.
	RequireRole []authz.Role
	// SkipAuth marks a public endpoint. The handler still receives an
	// anonymous user context so its code path is uniform.
	SkipAuth bool
	// DisallowAdmin skips the admin-cookie probe entirely, forcing
	// user-facing credentials on endpoints admins must not reach.
	DisallowAdmin bool
}

// AuthMiddleware authenticates and authorizes API requests. Per request it
// checks the method, probes the admin session cookie, falls back to the
// web session, resolves the effective identity, enforces the permitted
// roles, and meters the organization's monthly quota.
type AuthMiddleware struct {
	resolver *authz.Resolver
	admins   *session.Manager
	web      session.Source
	quota    *quota.Tracker
	logger   *observability.Logger
	metrics  *observability.Metrics
	audits   audit.Logger
	verbose  bool
	cookie   string
}

// NewAuthMiddleware creates the API auth middleware. admins, web and
// quotaTracker may each be nil to disable that collaborator (tests wire
// only what they assert).
func NewAuthMiddleware(resolver *authz.Resolver, admins *session.Manager, web session.Source, quotaTracker *quota.Tracker, logger *observability.Logger, metrics *observability.Metrics, verbose bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		admins:   admins,
		web:      web,
		quota:    quotaTracker,
		logger:   logger,
		metrics:  metrics,
		audits:   audit.NopLogger{},
		verbose:  verbose,
		cookie:   DefaultAdminCookieName,
	}
}

// SetAuditLogger enables the audit trail for quota rejections
func (m *AuthMiddleware) SetAuditLogger(l audit.Logger) {
	if l != nil {
		m.audits = l
	}
}

// SetAdminCookieName overrides the admin session cookie name
func (m *AuthMiddleware) SetAdminCookieName(name string) {
	if name != "" {
		m.cookie = name
	}
}

// WithAuth wraps a handler with the full authorization pipeline
func (m *AuthMiddleware) WithAuth(opts Options, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !methodAllowed(opts.AllowedMethods, r.Method) {
			httputil.WriteMethodNotAllowed(w, fmt.Sprintf("Method %s not allowed", r.Method))
			return
		}

		if opts.SkipAuth {
			ctx := contextkeys.WithUserContext(r.Context(), authz.UserContext(&authz.AnonymousContext{}))
			next(w, r.WithContext(ctx))
			return
		}

		uc, sess, err := m.authenticate(w, r, opts)
		if err != nil || uc == nil {
			// authenticate already wrote the response
			return
		}

		if !roleAllowed(opts.RequireRole, uc.Role()) {
			if m.metrics != nil {
				m.metrics.RoleRejectionsTotal.WithLabelValues(string(uc.Role())).Inc()
			}
			perr := &authz.RolePermissionError{Required: opts.RequireRole}
			httputil.WriteForbidden(w, perr.Error())
			return
		}

		if !m.enforceQuota(w, r, uc) {
			return
		}

		ctx := contextkeys.WithUserContext(r.Context(), uc)
		if sess != nil {
			ctx = contextkeys.WithAdminSession(ctx, sess)
		}
		next(w, r.WithContext(ctx))
	}
}

// authenticate probes the admin cookie, then the web session. On failure
// it writes the response and returns a nil context.
func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request, opts Options) (authz.UserContext, *session.Session, error) {
	if m.admins != nil && !opts.DisallowAdmin {
		if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
			sess, admin, err := m.admins.Validate(r.Context(), c.Value)
			if err != nil {
				m.internalError(w, r, err)
				return nil, nil, err
			}
			if admin != nil {
				uc, err := m.resolver.ResolveAdmin(r.Context(), admin, r.URL.Path)
				if err != nil {
					m.internalError(w, r, err)
					return nil, nil, err
				}
				return uc, sess, nil
			}
			// A stale admin cookie falls through to the web session;
			// the browser may hold both.
		}
	}

	if m.web == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return nil, nil, nil
	}
	ws, err := m.web.GetSession(r)
	if err != nil {
		m.internalError(w, r, err)
		return nil, nil, err
	}
	if ws == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return nil, nil, nil
	}

	uc, err := m.resolver.ResolveEmail(r.Context(), ws.Email, r.URL.Path, opts.RequireRole)
	if err != nil {
		m.writeResolutionError(w, r, err)
		return nil, nil, err
	}
	return uc, nil, nil
}

// enforceQuota meters the call when the identity is bound to an
// organization. It writes the rate-limit headers on every metered request
// and the 429 when the ceiling is exceeded. Identities without an
// organization are not metered.
func (m *AuthMiddleware) enforceQuota(w http.ResponseWriter, r *http.Request, uc authz.UserContext) bool {
	if m.quota == nil {
		return true
	}
	scoped, ok := uc.(authz.OrgScoped)
	if !ok {
		return true
	}
	orgID, ok := scoped.Organization()
	if !ok {
		return true
	}

	res, err := m.quota.TrackAPICall(r.Context(), orgID)
	if err != nil {
		// Quota accounting failure must not take the API down
		m.logger.WithError(err).WithField("organization_id", orgID).
			Warn("quota tracking failed; allowing request")
		return true
	}

	if res.Limit != nil {
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(*res.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(*res.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	}
	if !res.Allowed {
		// Fire-and-forget: the audit write must not hold up the 429.
		event := &audit.Event{
			Type:   audit.EventQuotaExceeded,
			Email:  uc.ActorEmail(),
			Detail: fmt.Sprintf("organization %d", orgID),
		}
		async.SafeGo(context.Background(), 5*time.Second, "quota-audit", func(ctx context.Context) error {
			return m.audits.Log(ctx, event)
		})
		httputil.WriteTooManyRequests(w, fmt.Sprintf(
			"Monthly API quota exceeded. Quota resets on %s", res.ResetAt.Format("2006-01-02")))
		return false
	}
	return true
}

func (m *AuthMiddleware) writeResolutionError(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := authz.AsApprovalError(err); ok {
		httputil.WriteApprovalError(w,
			fmt.Sprintf("Your %s account is not approved yet", ae.Role),
			string(ae.Status))
		return
	}
	if re, ok := authz.AsRouteRoleError(err); ok {
		httputil.WriteForbidden(w, re.Error())
		return
	}
	if pe, ok := authz.AsRolePermissionError(err); ok {
		httputil.WriteForbidden(w, pe.Error())
		return
	}
	if err == authz.ErrNoIdentity {
		// The credential was valid but no actor record exists, so this is
		// an authorization failure, not a missing credential.
		httputil.WriteForbidden(w, "User not found")
		return
	}
	m.internalError(w, r, err)
}

func (m *AuthMiddleware) internalError(w http.ResponseWriter, r *http.Request, err error) {
	m.logger.WithError(err).
		WithField("path", r.URL.Path).
		WithField("request_id", contextkeys.GetRequestID(r.Context())).
		Error("authorization pipeline failure")
	httputil.WriteInternalError(w, err, m.verbose)
}

func methodAllowed(allowed []string, method string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if m == method {
			return true
		}
	}
	return false
}

// roleAllowed enforces the permitted-role set. Admins pass any set; the
// DisallowAdmin option is the lever for keeping them out of an endpoint.
func roleAllowed(allowed []authz.Role, role authz.Role) bool {
	if len(allowed) == 0 || role == authz.RoleAdmin {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
