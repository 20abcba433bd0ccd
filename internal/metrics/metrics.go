// Package metrics registers the Prometheus collectors emitted by every
// pipeline component against a dedicated registry (not the global default,
// mirroring pkg/metrics.Registry).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every collector registered by this package.
var Registry = prometheus.NewRegistry()

var (
	LedgerTransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ems",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transactions recorded, by transaction type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	InsurerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ems",
			Subsystem: "gateway",
			Name:      "insurer_requests_total",
			Help:      "Outbound insurer requests, by insurer and outcome.",
		},
		[]string{"insurer_id", "outcome"},
	)

	InsurerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ems",
			Subsystem: "gateway",
			Name:      "insurer_request_duration_seconds",
			Help:      "Duration of outbound insurer requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"insurer_id"},
	)

	EndorsementsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ems",
			Subsystem: "orchestrator",
			Name:      "endorsements_processed_total",
			Help:      "Endorsement requests processed, by resulting status.",
		},
		[]string{"status"},
	)

	SchedulerBatchesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ems",
			Subsystem: "scheduler",
			Name:      "batches_processed_total",
			Help:      "Tumbling-window batches swept and published, by employer.",
		},
		[]string{"employer_id"},
	)

	BusMessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ems",
			Subsystem: "bus",
			Name:      "messages_published_total",
			Help:      "Messages published to the bus, by topic.",
		},
		[]string{"topic"},
	)
)

func init() {
	Registry.MustRegister(
		LedgerTransactionsTotal,
		InsurerRequestsTotal,
		InsurerRequestDuration,
		EndorsementsProcessedTotal,
		SchedulerBatchesProcessedTotal,
		BusMessagesPublishedTotal,
	)
}
