package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthResolutionsTotal    *prometheus.CounterVec
	ApprovalRejectionsTotal *prometheus.CounterVec
	RoleRejectionsTotal     *prometheus.CounterVec

	// Session metrics
	SessionValidationsTotal *prometheus.CounterVec
	SessionsCleanedTotal    prometheus.Counter

	// Quota metrics
	QuotaRejectionsTotal prometheus.Counter
	QuotaTrackedTotal    prometheus.Counter

	// Identity cache metrics
	IdentityCacheHitsTotal   prometheus.Counter
	IdentityCacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentfold_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rentfold_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentfold_auth_resolutions_total",
				Help: "Total number of role resolutions by resolved role and outcome",
			},
			[]string{"role", "outcome"},
		),
		ApprovalRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentfold_approval_rejections_total",
				Help: "Requests rejected because the actor's account is not approved",
			},
			[]string{"role", "approval_status"},
		),
		RoleRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentfold_role_rejections_total",
				Help: "Requests rejected because the resolved role was not permitted",
			},
			[]string{"role"},
		),
		SessionValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentfold_admin_session_validations_total",
				Help: "Admin session validation attempts by outcome",
			},
			[]string{"outcome"},
		),
		SessionsCleanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rentfold_admin_sessions_cleaned_total",
				Help: "Expired admin sessions removed by the cleanup job",
			},
		),
		QuotaRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rentfold_quota_rejections_total",
				Help: "Requests rejected because the organization exceeded its monthly API quota",
			},
		),
		QuotaTrackedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rentfold_quota_tracked_calls_total",
				Help: "Organization-bound API calls counted against a quota",
			},
		),
		IdentityCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rentfold_identity_cache_hits_total",
				Help: "Identity lookups served from the per-email cache",
			},
		),
		IdentityCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rentfold_identity_cache_misses_total",
				Help: "Identity lookups that required database fan-out",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthResolutionsTotal,
		m.ApprovalRejectionsTotal,
		m.RoleRejectionsTotal,
		m.SessionValidationsTotal,
		m.SessionsCleanedTotal,
		m.QuotaRejectionsTotal,
		m.QuotaTrackedTotal,
		m.IdentityCacheHitsTotal,
		m.IdentityCacheMissesTotal,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records HTTP request metrics
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
