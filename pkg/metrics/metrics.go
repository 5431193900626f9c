// Package metrics defines the Prometheus collectors for the service.
// Collectors are package-level and registered via promauto so call
// sites stay one-liners.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentRequests counts intent validations by kind and outcome.
	IntentRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_intent_requests_total",
		Help: "Intent validation requests by intent kind and outcome",
	}, []string{"intent", "outcome"})

	// ValidationFailures counts intent validation failures by rule.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_validation_failures_total",
		Help: "Intent validation failures by intent kind and failed rule",
	}, []string{"intent", "reason"})

	// LockTransitions counts bridge lock status transitions.
	LockTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_lock_transitions_total",
		Help: "Lock status transitions by source and target status",
	}, []string{"from", "to"})

	// ReplayRejections counts replay-protected operations that were
	// dropped or refused.
	ReplayRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_replay_rejections_total",
		Help: "Replayed operations rejected by guard",
	}, []string{"guard"})

	// ProofConsumptions counts unlock proof outcomes.
	ProofConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_proof_consumptions_total",
		Help: "Unlock proof consumption attempts by outcome",
	}, []string{"outcome"})

	// LockSweepDuration times timeout sweep runs.
	LockSweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "causeway_lock_sweep_duration_seconds",
		Help:    "Duration of lock timeout sweep runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})

	// LocksReverted counts locks reverted by the timeout sweep.
	LocksReverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_locks_reverted_total",
		Help: "Locks reverted by the timeout sweep, by prior status",
	}, []string{"from"})

	// OutboxPending gauges undispatched outbox rows.
	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "causeway_outbox_pending_events",
		Help: "Outbound events awaiting dispatch",
	})

	// OutboxDispatches counts outbox publish attempts.
	OutboxDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_outbox_dispatches_total",
		Help: "Outbound event dispatch attempts by outcome",
	}, []string{"outcome"})

	// ConsistencyViolations counts structural problems found by the
	// audit worker. Any increase is an operator signal.
	ConsistencyViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "causeway_consistency_violations_total",
		Help: "Structural consistency violations detected by the audit worker",
	}, []string{"kind"})

	// DatabaseConnectionsGauge tracks sql.DB pool state.
	DatabaseConnectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "causeway_database_connections",
		Help: "Database connection pool state",
	}, []string{"state"})

	// HTTPRequestDuration times handled requests.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "causeway_http_request_duration_seconds",
		Help:    "HTTP request latency by method, path and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// RecordIntent records one intent validation outcome.
func RecordIntent(intent, outcome string) {
	IntentRequests.WithLabelValues(intent, outcome).Inc()
}

// RecordValidationFailure records a failed validation rule.
func RecordValidationFailure(intent, reason string) {
	ValidationFailures.WithLabelValues(intent, reason).Inc()
}

// RecordLockTransition records one lock status transition.
func RecordLockTransition(from, to string) {
	LockTransitions.WithLabelValues(from, to).Inc()
}

// RecordReplayRejection records a replay guard firing.
func RecordReplayRejection(guard string) {
	ReplayRejections.WithLabelValues(guard).Inc()
}

// RecordProofConsumption records an unlock proof attempt outcome.
func RecordProofConsumption(outcome string) {
	ProofConsumptions.WithLabelValues(outcome).Inc()
}
