// Package health implements the process's liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/logging"
)

// BusPinger is satisfied by *bus.Service; narrowed so the readiness check
// can be unit tested against a fake.
type BusPinger interface {
	Ping(ctx context.Context) error
}

// RoomCounter is satisfied by *hub.Registry.
type RoomCounter interface {
	RoomCount() int
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	bus   BusPinger // nil in single-instance mode, where Redis is not in use
	rooms RoomCounter
}

// NewHandler constructs a Handler. bus may be nil when the hub is running
// without the cross-instance broadcast transport.
func NewHandler(bus BusPinger, rooms RoomCounter) *Handler {
	return &Handler{bus: bus, rooms: rooms}
}

// LivenessResponse is the body returned by Liveness.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is the body returned by Readiness.
type ReadinessResponse struct {
	Status     string            `json:"status"`
	Checks     map[string]string `json:"checks"`
	ActiveRoom int               `json:"activeRooms"`
	Timestamp  string            `json:"timestamp"`
}

// Liveness reports whether the process is alive, with no dependency checks.
// GET /health/live
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports whether the hub's dependencies are reachable.
// GET /health/ready
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"bus": h.checkBus(ctx)}

	healthy := checks["bus"] == "healthy"
	status := "ready"
	statusCode := http.StatusOK
	if !healthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, ReadinessResponse{
		Status:     status,
		Checks:     checks,
		ActiveRoom: h.rooms.RoomCount(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) checkBus(ctx context.Context) string {
	if h.bus == nil {
		return "healthy"
	}
	if err := h.bus.Ping(ctx); err != nil {
		logging.Error(ctx, "bus health check failed", zap.Error(err))
		return "unhealthy"
	}
	return "healthy"
}
