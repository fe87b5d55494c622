// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// MatchesTotal tracks successful pairings per language.
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaker_matches_total",
			Help: "Total conversations created by the matchmaker",
		},
		[]string{"language"},
	)

	// WaitingUsers tracks the current waiting-pool size per language.
	WaitingUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchmaker_waiting_users",
			Help: "Users currently waiting for a partner",
		},
		[]string{"language"},
	)

	// ActiveConversations tracks conversations currently active.
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conversations_active",
			Help: "Number of active conversations",
		},
	)

	// MessagesTotal tracks total messages relayed.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages persisted and relayed",
		},
		[]string{"language"},
	)

	// WSConnectionsActive tracks live websocket connections.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	// BroadcastsDropped tracks payloads dropped on slow or dead connections.
	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcasts_dropped_total",
			Help: "Broadcast payloads dropped because the peer was slow or gone",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementWSConnections increments the active websocket connection count.
func IncrementWSConnections() {
	WSConnectionsActive.Inc()
}

// DecrementWSConnections decrements the active websocket connection count.
func DecrementWSConnections() {
	WSConnectionsActive.Dec()
}
