package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the trade lifecycle store.
type Metrics struct {
	// Write path
	TradesCreated       prometheus.Counter
	TradesRejected      *prometheus.CounterVec
	TransitionsApplied  *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	TransitionDuration  prometheus.Histogram
	EventLogSequence    prometheus.Gauge

	// Outbound publish
	PublishErrors prometheus.Counter

	// Query path
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers against an explicit registerer (used by tests).
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	latencyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01, 0.025,
	}

	factory := promauto.With(reg)

	return &Metrics{
		TradesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_trades_created_total",
			Help: "Trades created in the EXECUTED state",
		}),

		TradesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_trades_rejected_total",
			Help: "Trade creations rejected at validation, by offending field",
		}, []string{"field"}),

		TransitionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transitions_applied_total",
			Help: "Status transitions applied",
		}, []string{"to_status"}),

		TransitionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transitions_rejected_total",
			Help: "Status transitions rejected (not_found, invalid_transition, invalid_state)",
		}, []string{"reason"}),

		TransitionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transition_duration_seconds",
			Help:    "Time spent inside the per-trade critical section",
			Buckets: latencyBuckets,
		}),

		EventLogSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_event_log_sequence",
			Help: "Highest event sequence appended to the audit log",
		}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_publish_errors_total",
			Help: "Outbound event publish failures (non-fatal)",
		}),

		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_query_requests_total",
			Help: "Query engine requests",
		}, []string{"query"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_query_duration_seconds",
			Help:    "Query engine latency",
			Buckets: latencyBuckets,
		}, []string{"query"}),
	}
}
