package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "resumedesk"

var (
	RouterDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "router_decisions_total", Help: "Access router outcomes by decision and target."},
		[]string{"decision", "target"},
	)
	FeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "feed_events_total", Help: "Change feed events by type and stage."},
		[]string{"type", "stage"},
	)
	ReconcileFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "reconcile_fallbacks_total", Help: "Live list re-fetch failures that degraded to the event payload."},
		[]string{"kind"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RouterDecisions)
	reg.MustRegister(FeedEvents)
	reg.MustRegister(ReconcileFallbacks)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
