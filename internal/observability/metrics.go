// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "signal_trade_lab"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Pairing metrics
	MessagesProcessed  *prometheus.CounterVec
	TradesPaired       prometheus.Counter
	EntriesOverwritten prometheus.Counter
	OrphanExits        *prometheus.CounterVec
	OutOfOrderMessages prometheus.Counter
	RepairRuns         prometheus.Counter
	LastMessageID      prometheus.Gauge

	// Feed metrics
	FeedMessagesReceived prometheus.Counter
	FeedReconnects       prometheus.Counter

	// Storage metrics
	SnapshotWrites *prometheus.CounterVec

	// Aggregation metrics
	AggregationRuns *prometheus.CounterVec
	RejectedTrades  prometheus.Counter

	// Pipeline metrics
	PipelineDuration       *prometheus.HistogramVec
	LastSuccessfulPipeline prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "messages_processed_total",
			Help:      "Total number of messages applied to the pairing engine by parse kind",
		}, []string{"kind"}),
		TradesPaired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "trades_paired_total",
			Help:      "Total number of trades closed by the pairing engine",
		}),
		EntriesOverwritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "entries_overwritten_total",
			Help:      "Total number of pending entries discarded by a newer entry",
		}),
		OrphanExits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "orphan_exits_total",
			Help:      "Total number of exits that could not be paired, by reason",
		}, []string{"reason"}),
		OutOfOrderMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "out_of_order_messages_total",
			Help:      "Total number of messages that arrived at or below the pairing cursor",
		}),
		RepairRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "repair_runs_total",
			Help:      "Total number of full re-pair runs over the message log",
		}),
		LastMessageID: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "last_message_id",
			Help:      "Highest message id applied to the pairing state",
		}),

		FeedMessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_received_total",
			Help:      "Total number of messages received from the live feed",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of live feed reconnect attempts",
		}),

		SnapshotWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "snapshot_writes_total",
			Help:      "Total number of snapshot writes by store and status",
		}, []string{"store", "status"}),

		AggregationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs by status",
		}, []string{"status"}),
		RejectedTrades: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "rejected_trades_total",
			Help:      "Total number of trades excluded from aggregation",
		}),

		PipelineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"phase"}),
		LastSuccessfulPipeline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the metrics instance registered with the default registry.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordMessage counts a message applied to the pairing engine.
func (m *Metrics) RecordMessage(kind string, messageID int64) {
	if m == nil {
		return
	}
	m.MessagesProcessed.WithLabelValues(kind).Inc()
	m.LastMessageID.Set(float64(messageID))
}

// RecordTrade counts a closed trade.
func (m *Metrics) RecordTrade() {
	if m == nil {
		return
	}
	m.TradesPaired.Inc()
}

// RecordEntryOverwritten counts a discarded pending entry.
func (m *Metrics) RecordEntryOverwritten() {
	if m == nil {
		return
	}
	m.EntriesOverwritten.Inc()
}

// RecordOrphanExit counts an unpaired exit.
func (m *Metrics) RecordOrphanExit(reason string) {
	if m == nil {
		return
	}
	m.OrphanExits.WithLabelValues(reason).Inc()
}

// RecordOutOfOrder counts a message that forced a full re-pair.
func (m *Metrics) RecordOutOfOrder() {
	if m == nil {
		return
	}
	m.OutOfOrderMessages.Inc()
}

// RecordRepair counts a full re-pair run.
func (m *Metrics) RecordRepair() {
	if m == nil {
		return
	}
	m.RepairRuns.Inc()
}

// RecordFeedMessage counts a message received from the feed.
func (m *Metrics) RecordFeedMessage() {
	if m == nil {
		return
	}
	m.FeedMessagesReceived.Inc()
}

// RecordFeedReconnect counts a feed reconnect attempt.
func (m *Metrics) RecordFeedReconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}

// RecordSnapshotWrite records a store write outcome.
func (m *Metrics) RecordSnapshotWrite(store string, err error) {
	if m == nil {
		return
	}
	m.SnapshotWrites.WithLabelValues(store, status(err)).Inc()
}

// RecordAggregation records an aggregation run and its rejected trades.
func (m *Metrics) RecordAggregation(rejected int, err error) {
	if m == nil {
		return
	}
	m.AggregationRuns.WithLabelValues(status(err)).Inc()
	m.RejectedTrades.Add(float64(rejected))
}

// RecordPipelineRun records a pipeline phase duration; successful runs update the health gauge.
func (m *Metrics) RecordPipelineRun(phase string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	m.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
	if err == nil {
		m.LastSuccessfulPipeline.SetToCurrentTime()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
