// Command rentfold runs the property-management API: request
// authorization, admin session management, and organization quota
// metering in front of the portal and admin endpoints.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rentfold/rentfold/pkg/api"
	"github.com/rentfold/rentfold/pkg/async"
	"github.com/rentfold/rentfold/pkg/audit"
	"github.com/rentfold/rentfold/pkg/authz"
	"github.com/rentfold/rentfold/pkg/config"
	"github.com/rentfold/rentfold/pkg/identity"
	"github.com/rentfold/rentfold/pkg/middleware"
	"github.com/rentfold/rentfold/pkg/observability"
	"github.com/rentfold/rentfold/pkg/orgs"
	"github.com/rentfold/rentfold/pkg/quota"
	"github.com/rentfold/rentfold/pkg/session"
)

func main() {
	boot := logrus.New()
	boot.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		boot.WithError(err).Fatal("failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		boot.WithError(err).Fatal("failed to open database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		boot.WithError(err).Fatal("failed to ping database")
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			boot.WithError(err).Fatal("failed to ping redis")
		}
		defer redisClient.Close()
	}

	// Identity directory: Redis cache when configured, in-process LRU
	// otherwise.
	store := identity.NewPostgresStore(db)
	var idCache identity.Cache
	if redisClient != nil {
		idCache = identity.NewRedisCache(redisClient, identity.DefaultCacheTTL)
	} else {
		idCache = identity.NewLRUCache(identity.DefaultCacheSize, identity.DefaultCacheTTL)
	}
	dir := identity.NewDirectory(store, idCache, metrics)

	routes := authz.DefaultRouteTable()
	if cfg.Auth.RouteTablePath != "" {
		if routes, err = authz.LoadRouteTable(cfg.Auth.RouteTablePath); err != nil {
			boot.WithError(err).Fatal("failed to load route table")
		}
	}
	resolver := authz.NewResolver(dir, routes, logger, metrics)

	var cipher *session.TokenCipher
	if cfg.Auth.SessionEncryptionKey != "" {
		if cipher, err = session.NewTokenCipher(cfg.Auth.SessionEncryptionKey); err != nil {
			boot.WithError(err).Fatal("invalid session encryption key")
		}
	}
	sessions := session.NewManager(session.NewPostgresStore(db), store, cipher, cfg.Auth.AdminSessionMaxAge, metrics)

	webSessions, err := session.NewOIDCSource(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID, cfg.Auth.WebCookieName)
	if err != nil {
		boot.WithError(err).Fatal("failed to initialize web session verifier")
	}

	var counters quota.CounterStore
	if redisClient != nil {
		counters = quota.NewRedisStore(redisClient)
	} else {
		counters = quota.NewMemoryStore()
	}
	tracker := quota.NewTracker(orgs.NewPostgresService(db), counters, logger, metrics)

	audits := audit.NewDBLogger(db)

	auth := middleware.NewAuthMiddleware(resolver, sessions, webSessions, tracker, logger, metrics, !cfg.IsProduction())
	auth.SetAdminCookieName(cfg.Auth.AdminCookieName)
	auth.SetAuditLogger(audits)

	pages := middleware.NewPageMiddleware(resolver, store, sessions, webSessions, logger)
	pages.SetAdminCookieName(cfg.Auth.AdminCookieName)

	server := api.NewServer(cfg, auth, pages, sessions, dir, db, logger, metrics)
	server.AdminAuth().SetAuditLogger(audits)
	if cfg.Auth.OIDCClientID != "" && cfg.Auth.OIDCRedirectURL != "" {
		google, err := api.NewGoogleAuth(ctx, cfg)
		if err != nil {
			boot.WithError(err).Fatal("failed to initialize Google sign-in")
		}
		server.AdminAuth().SetGoogleAuth(google)
	}

	// Expired admin sessions are hard-deleted hourly; expiry itself is
	// enforced at validation time, the job just keeps the table small.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		async.SafeGoNoError(context.Background(), time.Minute, "session-cleanup", func(ctx context.Context) {
			n, err := sessions.CleanupExpired(ctx)
			if err != nil {
				logger.WithError(err).Error("session cleanup failed")
				return
			}
			if n > 0 {
				logger.WithField("deleted", n).Info("cleaned up expired admin sessions")
				if err := audits.Log(ctx, &audit.Event{
					Type:   audit.EventSessionCleanup,
					Detail: fmt.Sprintf("%d expired sessions deleted", n),
				}); err != nil {
					logger.WithError(err).Warn("failed to record audit event")
				}
			}
		})
	}); err != nil {
		boot.WithError(err).Fatal("failed to schedule session cleanup")
	}
	scheduler.Start()
	defer scheduler.Stop()

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.OpsPort),
		Handler: server.OpsRouter(),
	}

	go func() {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.WithError(err).Fatal("ops server failed")
		}
	}()
	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			boot.WithError(err).Fatal("api server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("api server shutdown failed")
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("ops server shutdown failed")
	}
}
