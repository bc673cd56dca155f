package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions that are neither expired nor revoked.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkpost_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// PasswordResets counts password reset flow outcomes
	// (requested|throttled|completed|rejected).
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_password_resets_total",
			Help: "Total number of password reset flow events",
		},
		[]string{"outcome"},
	)

	// ResetMailFailures counts reset emails that could not be delivered.
	ResetMailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkpost_password_reset_dispatch_failures_total",
			Help: "Total number of reset emails that failed to send",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkpost_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
