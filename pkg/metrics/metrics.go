// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestDuration tracks REST call duration as seen by the client.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutorchat_api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "code"},
	)

	// SocketReconnects counts reconnect attempts after the first dial.
	SocketReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorchat_socket_reconnects_total",
			Help: "Total socket reconnect attempts",
		},
	)

	// SocketConnected is 1 while a socket connection is live.
	SocketConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutorchat_socket_connected",
			Help: "Whether the realtime socket is connected",
		},
	)

	// SocketEvents counts inbound events delivered to listeners.
	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorchat_socket_events_total",
			Help: "Total inbound socket events delivered",
		},
		[]string{"event"},
	)

	// SocketEventsDropped counts inbound events rejected by the decoder.
	SocketEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorchat_socket_events_dropped_total",
			Help: "Total inbound socket events dropped as malformed",
		},
		[]string{"event", "reason"},
	)

	// StoreDuplicateMessages counts messages ignored because their id was already seen.
	StoreDuplicateMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorchat_store_duplicate_messages_total",
			Help: "Total duplicate messages ignored by the store",
		},
	)

	// StoreRejectedMessages counts messages rejected for missing identity.
	StoreRejectedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorchat_store_rejected_messages_total",
			Help: "Total malformed messages rejected by the store",
		},
	)

	// DevserverConnections tracks sockets attached to the development server.
	DevserverConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutorchat_devserver_connections_active",
			Help: "Number of active development server socket connections",
		},
	)

	// DevserverMessages counts messages persisted by the development server.
	DevserverMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorchat_devserver_messages_total",
			Help: "Total messages persisted by the development server",
		},
		[]string{"msg_type"},
	)
)

// RecordAPIRequest records metrics for a REST call.
func RecordAPIRequest(method, path string, code int, start time.Time) {
	APIRequestDuration.WithLabelValues(method, path, strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}

// SetSocketConnected flips the connection gauge.
func SetSocketConnected(connected bool) {
	if connected {
		SocketConnected.Set(1)
		return
	}
	SocketConnected.Set(0)
}

// RecordSocketEvent counts an inbound event delivered to listeners.
func RecordSocketEvent(event string) {
	SocketEvents.WithLabelValues(event).Inc()
}

// RecordDroppedEvent counts an inbound event the decoder refused.
func RecordDroppedEvent(event, reason string) {
	SocketEventsDropped.WithLabelValues(event, reason).Inc()
}
