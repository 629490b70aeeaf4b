// Package transport implements the WebSocket connection lifecycle: the
// per-connection Session (read/write pumps, keepalive, bounded outbound
// queue) and the HTTP upgrade handler that hands a new Session to the
// dispatcher.
package transport

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/quietloop/syncradio/internal/v1/protocol"
	"github.com/quietloop/syncradio/internal/v1/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MiB
	sendBufferSize = 64
)

// wsConn is the subset of *websocket.Conn a Session needs, narrowed so
// tests can substitute a fake.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Router is the single entry point a Session uses to hand off decoded
// frames and terminal disconnects. dispatch.Dispatcher implements it.
// Sessions are addressed through room.Sender (just ID and Send) rather
// than the concrete Session type, so transport and dispatch each depend
// only on room's interface, never on each other.
type Router interface {
	Route(s room.Sender, msg protocol.Inbound)
	Disconnect(s room.Sender)
}

// Session is one client's live WebSocket connection. It implements
// room.Sender so a room can address it without importing transport.
type Session struct {
	id     string
	conn   wsConn
	router Router

	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewSession wraps conn as a Session routed through router. The caller must
// still invoke Run to start its pumps.
func NewSession(conn wsConn, router Router) *Session {
	return &Session{
		id:     uuid.NewString(),
		conn:   conn,
		router: router,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ID returns the session's unique identifier, assigned at connect time.
func (s *Session) ID() string { return s.id }

// Send enqueues frame for delivery without blocking the caller. If the
// outbound queue is full the frame is dropped and a warning logged; a slow
// reader never stalls the room's critical section.
func (s *Session) Send(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.send <- frame:
	default:
		logging.Warn(nil, "dropping frame to slow session", zap.String("session_id", s.id))
	}
}

// Close shuts down the session's connection and outbound queue exactly
// once. Safe to call multiple times and from multiple goroutines.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.send)
	s.conn.Close()
}

// Run starts the session's read and write pumps and blocks until the
// connection terminates. Intended to be called from the goroutine that
// owns the upgraded connection.
func (s *Session) Run() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()
	s.readPump()
	<-done
}

func (s *Session) readPump() {
	defer func() {
		s.router.Disconnect(s)
		s.Close()
		metrics.DecConnection()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			metrics.WebsocketEvents.WithLabelValues("malformed", "rejected").Inc()
			s.Send(protocol.Error(err.Error(), time.Now().UnixMilli()))
			continue
		}

		s.router.Route(s, msg)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
