package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the oracle run.
type Metrics struct {
	// --- Engine ---
	TxsHandled        *prometheus.CounterVec
	Refunds           *prometheus.CounterVec
	OutboundsEmitted  prometheus.Counter
	EventsEmitted     *prometheus.CounterVec
	EngineSequence    prometheus.Gauge

	// --- Reconciliation ---
	ReconcileSettled   prometheus.Counter
	ReconcileFailed    prometheus.Counter
	ReconcileDuration  prometheus.Histogram
	PollAttempts       prometheus.Histogram
	EventsCorrelated   *prometheus.CounterVec
	PendingOutbounds   prometheus.Gauge
	Mismatches         *prometheus.CounterVec

	// --- Live node & chains ---
	LiveEventsReceived prometheus.Counter
	LiveRequestDur     *prometheus.HistogramVec
	ChainTransferDur   *prometheus.HistogramVec
	ChainReorgs        prometheus.Counter

	// --- Reporting ---
	ReportsPublished prometheus.Counter
	ResultsWritten   prometheus.Counter
	PersistErrors    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on a caller-supplied registerer; tests use this
// with a fresh registry to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	pollBuckets := []float64{1, 2, 5, 10, 25, 50, 100, 200}
	reqBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5}
	factory := promauto.With(reg)

	return &Metrics{
		TxsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_txs_handled_total",
			Help: "Inbound transactions applied to the engine",
		}, []string{"intent"}),

		Refunds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_refunds_total",
			Help: "Transactions refunded instead of executed",
		}, []string{"reason"}),

		OutboundsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_outbounds_emitted_total",
			Help: "Outbound transfers produced by the engine",
		}),

		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_events_emitted_total",
			Help: "Typed records appended to the local event log",
		}, []string{"type"}),

		EngineSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_engine_sequence",
			Help: "Current engine transition sequence",
		}),

		ReconcileSettled: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_reconcile_settled_total",
			Help: "Transactions reconciled against the live node",
		}),

		ReconcileFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_reconcile_failed_total",
			Help: "Transactions that exhausted the polling budget",
		}),

		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_reconcile_duration_seconds",
			Help:    "Dispatch to settlement wall-clock time",
			Buckets: reqBuckets,
		}),

		PollAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_reconcile_poll_attempts",
			Help:    "Polling iterations until settlement",
			Buckets: pollBuckets,
		}),

		EventsCorrelated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_events_correlated_total",
			Help: "Live events matched to local predictions",
		}, []string{"type"}),

		PendingOutbounds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_pending_outbounds",
			Help: "Predicted outbounds not yet observed on the live stream",
		}),

		Mismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_mismatches_total",
			Help: "Divergences between local and live state",
		}, []string{"check"}),

		LiveEventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_live_events_received_total",
			Help: "Events received over the live node websocket",
		}),

		LiveRequestDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_live_request_duration_seconds",
			Help:    "Live node HTTP request latency",
			Buckets: reqBuckets,
		}, []string{"endpoint"}),

		ChainTransferDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_chain_transfer_duration_seconds",
			Help:    "Chain client transfer latency",
			Buckets: reqBuckets,
		}, []string{"chain"}),

		ChainReorgs: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_chain_reorgs_total",
			Help: "Block invalidations triggered during the run",
		}),

		ReportsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_reports_published_total",
			Help: "Divergence reports published to NATS",
		}),

		ResultsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_results_written_total",
			Help: "Reconciliation results written to Postgres",
		}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_persist_errors_total",
			Help: "Reporting sink errors",
		}, []string{"sink"}),
	}
}
