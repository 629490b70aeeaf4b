package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncDecConnection(t *testing.T) {
	before := testutil.ToFloat64(ActiveWebSocketConnections)
	IncConnection()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveWebSocketConnections))
	DecConnection()
	assert.Equal(t, before, testutil.ToFloat64(ActiveWebSocketConnections))
}

func TestIncDecRooms(t *testing.T) {
	before := testutil.ToFloat64(ActiveRooms)
	IncRooms()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveRooms))
	DecRooms()
	assert.Equal(t, before, testutil.ToFloat64(ActiveRooms))
}

func TestSetAndDeleteRoomMembers(t *testing.T) {
	SetRoomMembers("room-metrics-1", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(RoomMembers.WithLabelValues("room-metrics-1")))

	DeleteRoomMembers("room-metrics-1")
	assert.Equal(t, float64(0), testutil.ToFloat64(RoomMembers.WithLabelValues("room-metrics-1")))
}

func TestWebsocketEventsCounter(t *testing.T) {
	before := testutil.ToFloat64(WebsocketEvents.WithLabelValues("seek", "ok"))
	WebsocketEvents.WithLabelValues("seek", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WebsocketEvents.WithLabelValues("seek", "ok")))
}

func TestPlaybackTransitionsCounter(t *testing.T) {
	before := testutil.ToFloat64(PlaybackTransitions.WithLabelValues("seek"))
	PlaybackTransitions.WithLabelValues("seek").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PlaybackTransitions.WithLabelValues("seek")))
}

func TestBusOperationsCounter(t *testing.T) {
	before := testutil.ToFloat64(BusOperationsTotal.WithLabelValues("publish", "ok"))
	BusOperationsTotal.WithLabelValues("publish", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(BusOperationsTotal.WithLabelValues("publish", "ok")))
}

func TestCircuitBreakerStateGauge(t *testing.T) {
	CircuitBreakerState.WithLabelValues("bus").Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("bus")))
}
