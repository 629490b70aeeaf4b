package transport

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quietloop/syncradio/internal/v1/clock"
	"github.com/quietloop/syncradio/internal/v1/logging"
	"github.com/quietloop/syncradio/internal/v1/metrics"
	"github.com/quietloop/syncradio/internal/v1/protocol"
)

// ConnectionLimiter gates a new WebSocket connection before it is upgraded,
// satisfied by *ratelimit.Limiter. A nil ConnectionLimiter allows every
// connection through.
type ConnectionLimiter interface {
	AllowConnection(c *gin.Context) bool
}

// Server upgrades incoming HTTP requests to WebSocket connections and hands
// each resulting Session to router.
type Server struct {
	router         Router
	allowedOrigins []string
	upgrader       websocket.Upgrader
	limiter        ConnectionLimiter
	clock          clock.Clock
}

// NewServer constructs a Server that routes every accepted connection
// through router. allowedOrigins controls the WebSocket upgrade's Origin
// check; an empty slice allows any origin (useful for non-browser clients
// and tests). limiter may be nil to accept connections unthrottled. c
// stamps each session's welcome frame with the server clock at acceptance.
func NewServer(router Router, allowedOrigins []string, limiter ConnectionLimiter, c clock.Clock) *Server {
	s := &Server{
		router:         router,
		allowedOrigins: allowedOrigins,
		limiter:        limiter,
		clock:          c,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range s.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// Handle is the gin handler mounted at the WebSocket upgrade route. It
// upgrades the connection, wraps it in a Session, and starts that
// Session's pumps in a fresh goroutine so the HTTP handler can return
// immediately.
func (s *Server) Handle(c *gin.Context) {
	if s.limiter != nil && !s.limiter.AllowConnection(c) {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	session := NewSession(conn, s.router)
	metrics.IncConnection()

	session.Send(protocol.Connected(session.ID(), s.clock.NowMs()))
	go session.Run()
}
