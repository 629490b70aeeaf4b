// Package metrics declares the Prometheus collectors exposed at /metrics.
//
// Naming convention: namespace_subsystem_name
//   - namespace: syncradio (application-level grouping)
//   - subsystem: websocket, room, playback, bus, circuit_breaker, rate_limit (feature-level grouping)
//   - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
//   - Gauge: Current state (connections, rooms, members)
//   - Counter: Cumulative events (messages processed, errors)
//   - Histogram: Latency distributions (processing time)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncradio",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncradio",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the number of members in each room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "syncradio",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of inbound WebSocket messages processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent processing a single inbound message.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncradio",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// PlaybackTransitions tracks authoritative playback state transitions.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "playback",
		Name:      "transitions_total",
		Help:      "Total playback state transitions applied",
	}, []string{"transition"})

	// CircuitBreakerState tracks the current state of the circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "syncradio",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of connection attempts that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// BusOperationsTotal tracks the total number of Redis bus operations.
	BusOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncradio",
		Subsystem: "bus",
		Name:      "operations_total",
		Help:      "Total number of cross-instance bus operations",
	}, []string{"operation", "status"})

	// BusOperationDuration tracks the duration of Redis bus operations.
	BusOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncradio",
		Subsystem: "bus",
		Name:      "operation_duration_seconds",
		Help:      "Duration of cross-instance bus operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}

func IncRooms() {
	ActiveRooms.Inc()
}

func DecRooms() {
	ActiveRooms.Dec()
}

// SetRoomMembers records the current member count for roomID. Deleting the
// series is the caller's responsibility once the room is destroyed.
func SetRoomMembers(roomID string, count int) {
	RoomMembers.WithLabelValues(roomID).Set(float64(count))
}

// DeleteRoomMembers removes the member-count series for a destroyed room so
// it stops reporting a stale value.
func DeleteRoomMembers(roomID string) {
	RoomMembers.DeleteLabelValues(roomID)
}
