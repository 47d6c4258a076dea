package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Name:      "transactions_committed_total",
			Help:      "Committed ledger transactions",
		},
		[]string{"type"},
	)

	TransactionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Name:      "transactions_failed_total",
			Help:      "Rejected or aborted operations by reason",
		},
		[]string{"type", "reason"},
	)

	ConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledger_engine",
			Name:      "conflict_retries_total",
			Help:      "Transactions retried after a storage conflict",
		},
	)

	TransactionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledger_engine",
			Name:      "transaction_duration_seconds",
			Help:      "End-to-end latency per engine operation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)
