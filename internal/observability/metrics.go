package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synerthree_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RemoteRequestLatency records upstream call latency by operation and outcome.
	RemoteRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "synerthree_remote_request_latency_seconds",
		Help:    "Remote backend call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	// VoteTransitions counts vote intents by from/to state and result.
	VoteTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synerthree_vote_transitions_total",
		Help: "Total number of vote transitions by from state, to state and result",
	}, []string{"from", "to", "result"})

	// VoteRollbacks counts optimistic vote mutations that were reverted.
	VoteRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synerthree_vote_rollbacks_total",
		Help: "Total number of reverted optimistic vote mutations",
	}, []string{"reason"})

	// CommentRollbacks counts optimistic comment inserts that were reverted.
	CommentRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synerthree_comment_rollbacks_total",
		Help: "Total number of reverted optimistic comment inserts",
	})

	// InsightRequests counts AI insight requests by result.
	InsightRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "synerthree_insight_requests_total",
		Help: "Total number of AI insight requests",
	}, []string{"result"})

	// ActiveWorkspaces is the number of sessions with open screen state.
	ActiveWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "synerthree_active_workspaces",
		Help: "Number of sessions holding screen state in the gateway",
	})
)

// TrackRemote returns a function that records latency for an upstream call when called (e.g. defer).
func TrackRemote(operation string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		RemoteRequestLatency.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
	}
}
