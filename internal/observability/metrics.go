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
	// Classification metrics
	TransactionsClassified *prometheus.CounterVec
	ClassificationRetries  prometheus.Counter

	// Trading metrics
	FollowBuys        *prometheus.CounterVec
	FollowSells       *prometheus.CounterVec
	NotificationsSent prometheus.Counter

	// Queue metrics
	QueueDepth *prometheus.GaugeVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	GatewayLatency prometheus.Histogram

	// Stream metrics
	SignaturesReceived prometheus.Counter
	WSReconnects       prometheus.Counter

	// Health metrics
	LastSuccessfulClassification prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_copy_trader"
	}

	return &Metrics{
		TransactionsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "transactions_total",
			Help:      "Total number of transactions classified by outcome",
		}, []string{"outcome"}),
		ClassificationRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "retries_total",
			Help:      "Total number of transient classification retries",
		}),

		FollowBuys: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "follow_buys_total",
			Help:      "Total number of follow-buy decisions by status",
		}, []string{"status"}),
		FollowSells: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "follow_sells_total",
			Help:      "Total number of follow-sell decisions by status",
		}, []string{"status"}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Total number of operator notifications sent",
		}),

		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "queue_depth",
			Help:      "Current number of items in each pipeline queue",
		}, []string{"queue"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		GatewayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "swap_latency_seconds",
			Help:      "Swap execution latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 90},
		}),
		SignaturesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "signatures_received_total",
			Help:      "Total number of transaction signatures received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),

		LastSuccessfulClassification: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_classification_timestamp",
			Help:      "Unix timestamp of the last successful classification",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordClassified increments the classified transactions counter.
func RecordClassified(outcome string) {
	DefaultMetrics.TransactionsClassified.WithLabelValues(outcome).Inc()
}

// RecordFollowBuy increments the follow-buy counter.
func RecordFollowBuy(status string) {
	DefaultMetrics.FollowBuys.WithLabelValues(status).Inc()
}

// RecordFollowSell increments the follow-sell counter.
func RecordFollowSell(status string) {
	DefaultMetrics.FollowSells.WithLabelValues(status).Inc()
}

// SetQueueDepths updates all queue depth gauges.
func SetQueueDepths(classification, trade, alert int) {
	DefaultMetrics.QueueDepth.WithLabelValues("classification").Set(float64(classification))
	DefaultMetrics.QueueDepth.WithLabelValues("trade").Set(float64(trade))
	DefaultMetrics.QueueDepth.WithLabelValues("alert").Set(float64(alert))
}
