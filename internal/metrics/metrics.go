// Package metrics provides Prometheus instrumentation for the crew match
// server: request counters by outcome, per-partition queue-size gauges, and
// wait-time histograms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active notification
	// WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crew_ws_connections",
		Help: "Current number of active match notification connections",
	})

	// MatchRequestsTotal counts match requests by outcome status
	// (matched, waiting, already_waiting, already_matched).
	MatchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_match_requests_total",
		Help: "Total match requests processed, by outcome",
	}, []string{"status"})

	// QueueSize tracks the valid waiter count per MBTI partition.
	QueueSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crew_match_queue_size",
		Help: "Current number of valid waiters per MBTI partition",
	}, []string{"mbti"})

	// MatchWaitDuration records how long the dequeued partner waited
	// before being paired.
	MatchWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "crew_match_wait_seconds",
		Help:    "Time a matched partner spent waiting in the queue",
		Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// NotificationsTotal counts partner notifications by delivery path
	// (local, relayed, dropped).
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_match_notifications_total",
		Help: "Total match notifications, by delivery path",
	}, []string{"path"})

	// RoomsCreatedTotal counts chat rooms created by successful pairings.
	RoomsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crew_rooms_created_total",
		Help: "Total chat rooms created by the match coordinator",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MatchRequestsTotal,
		QueueSize,
		MatchWaitDuration,
		NotificationsTotal,
		RoomsCreatedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
