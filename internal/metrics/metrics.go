package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_sessions_created_total",
		Help: "Sessions created, by origin (interactive or calendar)",
	}, []string{"origin"})

	JoinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_join_attempts_total",
		Help: "Client join attempts, by outcome",
	}, []string{"outcome"})

	SignalingOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_ops_total",
		Help: "Signaling exchange operations, by operation",
	}, []string{"op"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_status_transitions_total",
		Help: "Session status transitions, by target status",
	}, []string{"to"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_notifications_sent_total",
		Help: "Lifecycle notifications dispatched, by kind",
	}, []string{"kind"})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_sessions_swept_total",
		Help: "Sessions marked expired by the periodic sweep",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_rate_limit_hits_total",
		Help: "Requests rejected by the public-route rate limiter",
	})
)
