package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/rentfold/rentfold/pkg/audit"
	"github.com/rentfold/rentfold/pkg/config"
	"github.com/rentfold/rentfold/pkg/httputil"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/session"
)

const oauthStateCookie = "admin_oauth_state"

// GoogleAuth bundles the OAuth2 exchange config and the ID-token verifier
// for admin Google sign-in
type GoogleAuth struct {
	OAuth    *oauth2.Config
	Verifier *oidc.IDTokenVerifier
}

// NewGoogleAuth discovers the OIDC provider and builds the admin Google
// sign-in wiring
func NewGoogleAuth(ctx context.Context, cfg *config.Config) (*GoogleAuth, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &GoogleAuth{
		OAuth: &oauth2.Config{
			ClientID:     cfg.Auth.OIDCClientID,
			ClientSecret: cfg.Auth.OIDCClientSecret,
			RedirectURL:  cfg.Auth.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		Verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Auth.OIDCClientID}),
	}, nil
}

// AdminHandlers owns the admin authentication endpoints: password and
// Google sign-in, logout, logout-everywhere, and the current-session probe.
type AdminHandlers struct {
	cfg      *config.Config
	sessions *session.Manager
	store    identity.Store
	google   *GoogleAuth
	audits   audit.Logger
	logger   *observability.Logger
}

// NewAdminHandlers creates the admin auth handlers. Google sign-in is
// disabled until SetGoogleAuth is called.
func NewAdminHandlers(cfg *config.Config, sessions *session.Manager, store identity.Store, logger *observability.Logger) *AdminHandlers {
	return &AdminHandlers{cfg: cfg, sessions: sessions, store: store, audits: audit.NopLogger{}, logger: logger}
}

// SetGoogleAuth enables Google sign-in
func (h *AdminHandlers) SetGoogleAuth(g *GoogleAuth) {
	h.google = g
}

// SetAuditLogger enables the audit trail for admin auth events
func (h *AdminHandlers) SetAuditLogger(l audit.Logger) {
	if l != nil {
		h.audits = l
	}
}

// record writes an audit event. Audit failures are logged and swallowed;
// the trail never takes an auth operation down with it.
func (h *AdminHandlers) record(ctx context.Context, eventType audit.EventType, adminID *int64, email, ip, detail string) {
	err := h.audits.Log(ctx, &audit.Event{
		Type:      eventType,
		AdminID:   adminID,
		Email:     email,
		IPAddress: ip,
		Detail:    detail,
	})
	if err != nil {
		h.logger.WithError(err).Warn("failed to record audit event")
	}
}

// RegisterRoutes registers the admin auth routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("POST", "OPTIONS")
	router.HandleFunc("/auth/google/login", h.googleLogin).Methods("GET")
	router.HandleFunc("/auth/google/callback", h.googleCallback).Methods("GET")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST", "OPTIONS")
	router.HandleFunc("/auth/logout-all", h.logoutAll).Methods("POST", "OPTIONS")
	router.HandleFunc("/auth/me", h.me).Methods("GET", "OPTIONS")
}

// login handles POST /admin/auth/login
func (h *AdminHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	admin, err := h.store.AdminByEmail(r.Context(), req.Email)
	if err != nil {
		h.internalError(w, err)
		return
	}
	// The bcrypt comparison runs even for unknown emails so response
	// timing does not reveal which emails exist.
	hash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	if admin != nil {
		hash = admin.PasswordHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil || admin == nil {
		h.record(r.Context(), audit.EventAdminLoginFailed, nil, req.Email, clientIP(r), "bad credentials")
		httputil.WriteUnauthorized(w, "Invalid credentials")
		return
	}
	if !admin.IsActive || admin.IsLocked {
		h.record(r.Context(), audit.EventAdminLoginFailed, &admin.ID, admin.Email, clientIP(r), "account disabled")
		httputil.WriteForbidden(w, "Account is disabled")
		return
	}

	sess, err := h.sessions.Create(r.Context(), admin.ID, clientIP(r), r.UserAgent(), nil)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.record(r.Context(), audit.EventAdminLogin, &admin.ID, admin.Email, clientIP(r), "password")
	h.setSessionCookie(w, sess.Token)
	httputil.WriteSuccess(w, map[string]interface{}{
		"id":    admin.ID,
		"email": admin.Email,
		"name":  admin.Name,
	})
}

// googleLogin handles GET /admin/auth/google/login
func (h *AdminHandlers) googleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "Google sign-in is not configured")
		return
	}

	state, err := randomState()
	if err != nil {
		h.internalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/admin/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline), http.StatusFound)
}

// googleCallback handles GET /admin/auth/google/callback
func (h *AdminHandlers) googleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		httputil.WriteError(w, http.StatusNotImplemented, "Google sign-in is not configured")
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	tokens, err := h.google.OAuth.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httputil.WriteUnauthorized(w, "OAuth code exchange failed")
		return
	}

	rawIDToken, ok := tokens.Extra("id_token").(string)
	if !ok {
		httputil.WriteUnauthorized(w, "Missing ID token")
		return
	}
	idToken, err := h.google.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		httputil.WriteUnauthorized(w, "Invalid ID token")
		return
	}
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		httputil.WriteUnauthorized(w, "ID token carries no email")
		return
	}

	admin, err := h.store.AdminByEmail(r.Context(), claims.Email)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if admin == nil || !admin.IsActive || admin.IsLocked {
		httputil.WriteForbidden(w, "Not an admin account")
		return
	}

	sess, err := h.sessions.Create(r.Context(), admin.ID, clientIP(r), r.UserAgent(), tokens)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.record(r.Context(), audit.EventAdminLogin, &admin.ID, admin.Email, clientIP(r), "google")
	h.setSessionCookie(w, sess.Token)
	http.Redirect(w, r, h.cfg.Web.AppURL+"/admin", http.StatusFound)
}

// logout handles POST /admin/auth/logout
func (h *AdminHandlers) logout(w http.ResponseWriter, r *http.Request) {
	sess, _, err := h.currentSession(r)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if sess != nil {
		if err := h.sessions.Revoke(r.Context(), sess.ID); err != nil {
			h.internalError(w, err)
			return
		}
		h.record(r.Context(), audit.EventAdminLogout, &sess.AdminID, "", clientIP(r), "")
	}
	h.clearSessionCookie(w)
	httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
}

// logoutAll handles POST /admin/auth/logout-all, revoking every session the
// admin holds on any device
func (h *AdminHandlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	sess, admin, err := h.currentSession(r)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if sess == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	if err := h.sessions.RevokeAll(r.Context(), admin.ID); err != nil {
		h.internalError(w, err)
		return
	}
	h.record(r.Context(), audit.EventAdminLogoutAll, &admin.ID, admin.Email, clientIP(r), "")
	h.clearSessionCookie(w)
	httputil.WriteSuccess(w, map[string]string{"status": "logged out everywhere"})
}

// me handles GET /admin/auth/me
func (h *AdminHandlers) me(w http.ResponseWriter, r *http.Request) {
	sess, admin, err := h.currentSession(r)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if sess == nil {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"id":             admin.ID,
		"email":          admin.Email,
		"name":           admin.Name,
		"sessionExpires": sess.ExpiresAt,
	})
}

func (h *AdminHandlers) currentSession(r *http.Request) (*session.Session, *identity.Admin, error) {
	c, err := r.Cookie(h.cfg.Auth.AdminCookieName)
	if err != nil || c.Value == "" {
		return nil, nil, nil
	}
	return h.sessions.Validate(r.Context(), c.Value)
}

func (h *AdminHandlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Auth.AdminCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Auth.AdminSessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AdminHandlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Auth.AdminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AdminHandlers) internalError(w http.ResponseWriter, err error) {
	h.logger.WithError(err).Error("admin auth handler failure")
	httputil.WriteInternalError(w, err, !h.cfg.IsProduction())
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// clientIP extracts the caller's IP, honoring the first hop in
// X-Forwarded-For when the request came through a proxy
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
