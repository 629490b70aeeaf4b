// Package bus implements the optional cross-instance broadcast transport:
// when configured, a room's already-serialized outbound frame is published
// to a Redis channel so every other hub process subscribed to that room
// relays it to its own local members. It carries no room state of any
// kind — only transient frame bytes in flight — since the hub has no
// persisted state and a process restart is equivalent to losing its rooms.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/google/uuid"
	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// FrameHandler processes a frame relayed from another instance.
type FrameHandler func(frame []byte)

// roomFrame is the envelope carried over the wire between instances.
type roomFrame struct {
	RoomID     string `json:"roomId"`
	Frame      []byte `json:"frame"`
	InstanceID string `json:"instanceId"`
}

// Service handles all interaction with the Redis pub/sub backend.
type Service struct {
	client     *redis.Client
	cb         *gobreaker.CircuitBreaker
	instanceID string
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// InstanceID is this process's identity on the bus, used to drop a
// published frame that loops back to its own subscription.
func (s *Service) InstanceID() string {
	if s == nil {
		return ""
	}
	return s.instanceID
}

// NewService opens a Redis connection and verifies it with a ping before
// returning.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "bus",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("bus").Set(stateVal)
		},
	}

	logging.Info(nil, "connected to broadcast bus", zap.String("addr", addr))
	return &Service{
		client:     rdb,
		cb:         gobreaker.NewCircuitBreaker(st),
		instanceID: uuid.NewString(),
	}, nil
}

// channelFor returns the pub/sub channel name for a room.
func channelFor(roomID string) string {
	return fmt.Sprintf("syncradio:room:%s", roomID)
}

// Publish relays frame to every other instance subscribed to roomID. A nil
// Service, or an open circuit breaker, degrades gracefully: the local
// broadcast has already happened by the time this is called, so a failure
// here only costs cross-instance fan-out, never the local room.
func (s *Service) Publish(ctx context.Context, roomID string, frame []byte) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(roomFrame{
			RoomID:     roomID,
			Frame:      frame,
			InstanceID: s.instanceID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bus envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, channelFor(roomID), data).Err()
	})
	metrics.BusOperationDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("bus").Inc()
			metrics.BusOperationsTotal.WithLabelValues("publish", "circuit_open").Inc()
			logging.Warn(ctx, "broadcast bus circuit open, dropping publish", zap.String("room_id", roomID))
			return nil
		}
		metrics.BusOperationsTotal.WithLabelValues("publish", "error").Inc()
		logging.Error(ctx, "broadcast bus publish failed", zap.String("room_id", roomID), zap.Error(err))
		return err
	}
	metrics.BusOperationsTotal.WithLabelValues("publish", "ok").Inc()
	return nil
}

// Subscribe starts a background goroutine relaying frames published by
// other instances for roomID to handler. Frames this instance itself
// published are dropped, since the room has already delivered them to its
// local members. The goroutine exits when ctx is cancelled, which the
// registry does when the room is destroyed.
func (s *Service) Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler FrameHandler) {
	if s == nil || s.client == nil {
		return
	}

	channel := channelFor(roomID)
	pubsub := s.client.Subscribe(ctx, channel)

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		logging.Info(nil, "subscribed to broadcast bus channel", zap.String("channel", channel))
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env roomFrame
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logging.Error(nil, "failed to unmarshal bus frame", zap.Error(err))
					continue
				}
				if env.InstanceID == s.instanceID {
					continue
				}
				handler(env.Frame)
			}
		}
	}()
}

// Ping verifies Redis connectivity, used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("bus").Inc()
		}
		return err
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
