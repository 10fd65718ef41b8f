// Package metrics provides Prometheus metrics for the entity store and
// its document subscriptions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal counts store mutation calls.
	// Labels: op (add_todo, update_todo, ...), result (success, error)
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total number of entity store mutation calls",
		},
		[]string{"op", "result"},
	)

	// SnapshotsApplied counts subscription snapshots applied to local state.
	// Labels: collection (todos, projects)
	SnapshotsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "snapshots_applied_total",
			Help:      "Total number of subscription snapshots applied",
		},
		[]string{"collection"},
	)

	// SnapshotApplyDuration tracks how long snapshot application takes.
	SnapshotApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "snapshot_apply_duration_seconds",
			Help:      "Duration of snapshot decode and state replacement in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SubscriptionErrors counts stream errors recorded without cancelling
	// the subscription.
	// Labels: collection (todos, projects)
	SubscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "store",
			Name:      "subscription_errors_total",
			Help:      "Total number of subscription stream errors recorded",
		},
		[]string{"collection"},
	)
)
