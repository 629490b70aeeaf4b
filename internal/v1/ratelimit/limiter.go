// Package ratelimit guards the WebSocket accept loop against connection
// floods from a single address, using the same store-selection policy the
// rest of the hub uses for Redis: a Redis-backed store when the bus is
// configured (so the limit is shared across instances), a local in-memory
// store otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
)

// Limiter enforces a connection rate per client IP on the WebSocket accept
// loop.
type Limiter struct {
	wsIP *limiter.Limiter
}

// New builds a Limiter from a rate string in ulule/limiter's formatted
// syntax (e.g. "100-M" for 100 per minute). redisClient may be nil, in
// which case the limit is tracked in local memory only.
func New(rate string, redisClient *redis.Client) (*Limiter, error) {
	wsIPRate, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate %q: %w", rate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "syncradio:ratelimit:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using memory store")
	}

	return &Limiter{wsIP: limiter.New(store, wsIPRate)}, nil
}

// AllowConnection reports whether a new WebSocket connection from c's
// client IP is within the configured rate. On a store failure it fails
// open, so a degraded rate-limit backend never blocks real connections.
// When the limit is exceeded, it writes the 429 response itself and
// returns false; the caller must not proceed to upgrade.
func (l *Limiter) AllowConnection(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	result, err := l.wsIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "rate limit store failed, allowing connection", zap.Error(err))
		return true
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_connect").Inc()

	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections from this address"})
		return false
	}

	return true
}
