// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Scheduler metrics
	TicksTotal    *prometheus.CounterVec
	TicksSkipped  *prometheus.CounterVec
	TickDuration  *prometheus.HistogramVec
	LastTickTime  *prometheus.GaugeVec
	PendingEvents prometheus.Gauge

	// Ingestion metrics
	EventsIngested  *prometheus.CounterVec
	EventsDiscarded *prometheus.CounterVec
	SourceErrors    prometheus.Counter

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram

	// Ledger metrics
	RPCCallLatency *prometheus.HistogramVec

	// Side-effect failures
	AnnotationErrors prometheus.Counter
	JournalErrors    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "calendefi"
	}

	return &Metrics{
		// Scheduler metrics
		TicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total number of loop ticks by loop and status",
		}, []string{"loop", "status"}),
		TicksSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_skipped_total",
			Help:      "Total number of ticks skipped because the previous tick was still running",
		}, []string{"loop"}),
		TickDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Loop tick duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"loop"}),
		LastTickTime: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_tick_timestamp",
			Help:      "Unix timestamp of the last completed tick",
		}, []string{"loop"}),
		PendingEvents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "due_events",
			Help:      "Number of due pending events seen by the last execution tick",
		}),

		// Ingestion metrics
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_ingested_total",
			Help:      "Total number of events inserted as pending by provenance",
		}, []string{"provenance"}),
		EventsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_discarded_total",
			Help:      "Total number of fetched events not inserted by reason",
		}, []string{"reason"}),
		SourceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "source_errors_total",
			Help:      "Total number of calendar source fetch errors",
		}),

		// Execution metrics
		ExecutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "executions_total",
			Help:      "Total number of recorded executions by status",
		}, []string{"status"}),
		ExecutionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 45, 60},
		}),

		// Ledger metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		AnnotationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "annotation_errors_total",
			Help:      "Total number of failed provider annotations",
		}),
		JournalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "append_errors_total",
			Help:      "Total number of failed journal appends",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records a completed loop tick.
func RecordTick(loop, status string, durationSeconds float64, unixTime int64) {
	DefaultMetrics.TicksTotal.WithLabelValues(loop, status).Inc()
	DefaultMetrics.TickDuration.WithLabelValues(loop).Observe(durationSeconds)
	DefaultMetrics.LastTickTime.WithLabelValues(loop).Set(float64(unixTime))
}

// RecordTickSkipped records a tick skipped by the single-flight guard.
func RecordTickSkipped(loop string) {
	DefaultMetrics.TicksSkipped.WithLabelValues(loop).Inc()
}

// UpdateDueEvents sets the due events gauge.
func UpdateDueEvents(n int) {
	DefaultMetrics.PendingEvents.Set(float64(n))
}

// RecordIngested increments the ingested events counter.
func RecordIngested(provenance string) {
	DefaultMetrics.EventsIngested.WithLabelValues(provenance).Inc()
}

// RecordDiscarded increments the discarded events counter.
func RecordDiscarded(reason string) {
	DefaultMetrics.EventsDiscarded.WithLabelValues(reason).Inc()
}

// RecordSourceError increments the source error counter.
func RecordSourceError() {
	DefaultMetrics.SourceErrors.Inc()
}

// RecordExecution records a recorded execution outcome.
func RecordExecution(status string, seconds float64) {
	DefaultMetrics.ExecutionsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.ExecutionDuration.Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAnnotationError increments the annotation error counter.
func RecordAnnotationError() {
	DefaultMetrics.AnnotationErrors.Inc()
}

// RecordJournalError increments the journal error counter.
func RecordJournalError() {
	DefaultMetrics.JournalErrors.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
