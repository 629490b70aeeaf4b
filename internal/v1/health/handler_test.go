package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeRoomCounter struct{ count int }

func (f fakeRoomCounter) RoomCount() int { return f.count }

type fakeBus struct{ err error }

func (f fakeBus) Ping(ctx context.Context) error { return f.err }

func TestLivenessAlwaysSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewHandler(nil, fakeRoomCounter{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/live", nil)

	handler.Liveness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
	assert.Contains(t, w.Body.String(), "timestamp")
}

func TestReadinessNoBusConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewHandler(nil, fakeRoomCounter{count: 3})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "ready")
	assert.Contains(t, body, "healthy")
	assert.Contains(t, body, "\"activeRooms\":3")
}

func TestReadinessBusUnhealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewHandler(fakeBus{err: errors.New("connection refused")}, fakeRoomCounter{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "unavailable")
	assert.Contains(t, body, "unhealthy")
}

func TestReadinessBusHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := NewHandler(fakeBus{}, fakeRoomCounter{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/health/ready", nil)

	handler.Readiness(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
