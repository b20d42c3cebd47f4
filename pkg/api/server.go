package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rentfold/rentfold/pkg/config"
	"github.com/rentfold/rentfold/pkg/httputil"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/middleware"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/session"
)

// Server wires the HTTP surface: admin auth endpoints behind the admin
// CORS layer, and the role-scoped API routes behind the auth middleware.
type Server struct {
	cfg     *config.Config
	auth    *middleware.AuthMiddleware
	admin   *AdminHandlers
	user    *UserHandlers
	portal  *PortalHandlers
	page    *PageHandlers
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates the API server
func NewServer(cfg *config.Config, auth *middleware.AuthMiddleware, pages *middleware.PageMiddleware, sessions *session.Manager, dir *identity.Directory, db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		auth:    auth,
		admin:   NewAdminHandlers(cfg, sessions, dir.Store(), logger),
		user:    NewUserHandlers(dir, logger),
		portal:  NewPortalHandlers(db, logger),
		page:    NewPageHandlers(pages, logger),
		logger:  logger,
		metrics: metrics,
	}
}

// AdminAuth exposes the admin handlers for optional Google sign-in wiring
func (s *Server) AdminAuth() *AdminHandlers {
	return s.admin
}

// Router builds the main application router
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(httputil.RequestIDMiddleware)
	r.Use(httputil.LoggingMiddleware(s.logger))
	r.Use(httputil.RecoveryMiddleware(s.logger, !s.cfg.IsProduction()))
	if s.metrics != nil {
		r.Use(s.instrument)
	}

	// Admin endpoints sit behind their own CORS layer; the rest of the API
	// is same-origin and needs none.
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(httputil.AdminCORSMiddleware(s.cfg.Web.AppURL, !s.cfg.IsProduction()))
	s.admin.RegisterRoutes(adminRouter)

	s.user.RegisterRoutes(r, s.auth)
	s.portal.RegisterRoutes(r, s.auth)
	s.page.RegisterRoutes(r, s.cfg.Web.RegistrationPath)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.metrics.ObserveRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// OpsRouter builds the health and metrics router served on the ops port
func (s *Server) OpsRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteSuccess(w, map[string]string{"status": "ok"})
	}).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	return r
}
