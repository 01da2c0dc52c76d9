package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ledger
	LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "ledger",
		Name:      "mutations_total",
		Help:      "Balance mutations by operation and result",
	}, []string{"op", "result"})

	LedgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "ledger",
		Name:      "cas_conflicts_total",
		Help:      "Compare-and-swap balance writes that lost a race and were retried",
	})

	// Settlement
	SettlementOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "settlement",
		Name:      "operations_total",
		Help:      "Settlement operations by kind and result",
	}, []string{"op", "result"})

	SettlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainvault",
		Subsystem: "settlement",
		Name:      "operation_duration_seconds",
		Help:      "Settlement operation duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})

	SwapTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "swaps",
		Name:      "transitions_total",
		Help:      "Swap order status transitions by target status",
	}, []string{"status"})

	SwapDegradedQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "swaps",
		Name:      "degraded_quotes_total",
		Help:      "Swap quotes priced with the fixed fallback multiplier",
	})

	PriceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "pricing",
		Name:      "lookups_total",
		Help:      "Price lookups by source and result",
	}, []string{"source", "result"})

	FeeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "fees",
		Name:      "cache_lookups_total",
		Help:      "Fee override cache lookups by result",
	}, []string{"result"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "Notifications created by category",
	}, []string{"category"})

	// Scheduler
	SchedulerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Deferred task executions by task name and result",
	}, []string{"task", "result"})

	SchedulerPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chainvault",
		Subsystem: "scheduler",
		Name:      "pending_tasks",
		Help:      "Tasks waiting in the delay queue",
	})

	SweeperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "sweeper",
		Name:      "recovered_total",
		Help:      "Entities re-driven by the sweeper by kind and result",
	}, []string{"kind", "result"})

	// Realtime
	RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chainvault",
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Live realtime connections",
	})

	RealtimeDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "realtime",
		Name:      "deliveries_total",
		Help:      "Per-connection event writes by result",
	}, []string{"result"})

	RealtimeReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "realtime",
		Name:      "reaped_total",
		Help:      "Connections terminated by the heartbeat sweep",
	})

	EventSinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "events",
		Name:      "sink_errors_total",
		Help:      "Failed event publications by sink",
	}, []string{"sink"})

	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainvault",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainvault",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Result labels an outcome for the *_total counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
