// Package metrics declares the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "delta"

// HTTP

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route pattern, method and status code.",
}, []string{"route", "method", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route pattern.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method"})

// Ledger

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Committed ledger mutations by operation and transaction type.",
}, []string{"op", "type"})

var LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Ledger mutations rejected by a business rule.",
}, []string{"op", "reason"})

var LedgerAmount = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "amount",
	Help:      "Distribution of committed transaction amounts in coins.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
})

var LeaderboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "leaderboard_cache_total",
	Help:      "Leaderboard cache lookups by result (hit, miss, error).",
}, []string{"result"})

// Realtime

var WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "websocket_connections",
	Help:      "Currently open wallet websocket connections on this instance.",
})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "realtime",
	Name:      "events_total",
	Help:      "Wallet events by origin (local, remote) and outcome.",
}, []string{"origin", "outcome"})

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
