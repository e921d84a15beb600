package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsFired counts delivered reminders by kind and channel
	// (push, toast or none).
	NotificationsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homekeep",
		Subsystem: "notify",
		Name:      "fired_total",
		Help:      "Reminders fired by kind and delivery channel.",
	}, []string{"kind", "channel"})

	// PendingReminders tracks armed reminder timers.
	PendingReminders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homekeep",
		Subsystem: "notify",
		Name:      "pending_reminders",
		Help:      "Reminder timers currently armed.",
	})

	// CascadeFailures counts delete cascades that stopped before completion.
	CascadeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homekeep",
		Subsystem: "tracker",
		Name:      "cascade_failures_total",
		Help:      "Incomplete delete cascades by root entity.",
	}, []string{"entity"})

	// StoreErrors counts facade operations that failed in the store.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homekeep",
		Subsystem: "tracker",
		Name:      "store_errors_total",
		Help:      "Facade operations failing with a storage error, by operation.",
	}, []string{"op"})

	// HTTPRequests counts API requests by route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homekeep",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"route", "status"})

	// HTTPDuration tracks request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homekeep",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// WebhookEvents counts Stripe webhook events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homekeep",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by event type and outcome.",
	}, []string{"event_type", "outcome"})
)
