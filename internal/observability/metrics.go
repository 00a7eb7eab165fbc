// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// VotesCast counts ledger transitions by target type and outcome (created, removed, switched).
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_votes_cast_total",
		Help: "Total number of committed vote ledger transitions",
	}, []string{"target_type", "outcome"})

	// VoteConflicts counts votes rejected by the uniqueness index.
	VoteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opinara_vote_conflicts_total",
		Help: "Total number of concurrent duplicate votes rejected",
	})

	// ClassifierCalls counts individual category classifier calls by result.
	ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_classifier_calls_total",
		Help: "Total number of category classifier calls",
	}, []string{"category", "result"})

	// ClassifierRetries counts retried classifier HTTP attempts.
	ClassifierRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opinara_classifier_retries_total",
		Help: "Total number of retried classifier requests",
	})

	// ModerationLatency records the duration of a full four-category classification.
	ModerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opinara_moderation_latency_seconds",
		Help:    "Latency of one text moderation in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"result"})

	// ModerationVerdicts counts persisted post verdicts by label.
	ModerationVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_moderation_verdicts_total",
		Help: "Total number of post moderation verdicts",
	}, []string{"label"})

	// CounterDrift counts cached counter values corrected by a ledger rebuild.
	CounterDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_counter_drift_total",
		Help: "Total number of cached counters corrected by recount",
	}, []string{"counter"})

	// EventsPublished counts domain events published to Redis.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opinara_events_published_total",
		Help: "Total number of domain events published",
	}, []string{"event", "result"})
)

// ObserveModeration records a moderation run that started at start.
func ObserveModeration(result string, start time.Time) {
	ModerationLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
