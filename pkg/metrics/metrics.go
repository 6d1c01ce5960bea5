package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by operation (login|register) and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiddies_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"operation", "result"},
	)

	// InvitesIssued counts invite requests by outcome (created|reused|email_failed).
	InvitesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiddies_invites_issued_total",
			Help: "Total number of invites issued",
		},
		[]string{"outcome"},
	)

	// CensusRecorded counts stored census records.
	CensusRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiddies_census_recorded_total",
			Help: "Total number of census records created",
		},
	)

	// CensusKids accumulates the kid counts of stored census records.
	CensusKids = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiddies_census_kids_total",
			Help: "Total number of kids counted across census records",
		},
	)

	// DashboardCache counts dashboard lookups by result (hit|miss|error).
	DashboardCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiddies_dashboard_cache_total",
			Help: "Dashboard stats cache lookups",
		},
		[]string{"result"},
	)

	// RateLimited counts requests rejected by the rate limiter per route.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiddies_rate_limited_total",
			Help: "Requests rejected because a client exceeded its rate limit",
		},
		[]string{"route"},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiddies_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// MaintenanceRuns counts background job runs by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiddies_maintenance_runs_total",
			Help: "Background maintenance job runs",
		},
		[]string{"job", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiddies_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
