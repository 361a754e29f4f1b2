package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsScheduled counts scheduler entries created per trigger family.
	NotificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_notifications_scheduled_total",
			Help: "Total number of notifications handed to the scheduler",
		},
		[]string{"trigger"},
	)

	// NotificationsDelivered counts notifications fired by the dispatcher per trigger family.
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_notifications_delivered_total",
			Help: "Total number of notifications delivered to the client",
		},
		[]string{"trigger"},
	)

	// NotificationsCancelled counts entries removed before firing.
	NotificationsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_notifications_cancelled_total",
			Help: "Total number of scheduled notifications cancelled",
		},
		[]string{"trigger"},
	)

	// VerificationChecks records verification checks by outcome (matched|pending|cooldown|expired).
	VerificationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_verification_checks_total",
			Help: "Total number of verification checks",
		},
		[]string{"result"},
	)

	// ScheduledOutstanding tracks currently outstanding scheduler entries.
	ScheduledOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engage_scheduled_outstanding",
			Help: "Number of outstanding scheduled notifications",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engage_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
