package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"eyescan-server/internal/platform/observability"
	"eyescan-server/internal/utils"
)

// HandlerBuilder creates a session handler for an upgraded websocket connection.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

// Router upgrades HTTP connections to websocket sessions.
type Router struct {
	hub    *Hub
	logger *utils.Logger

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	baseCtx          context.Context
	builder          atomic.Value // HandlerBuilder
}

type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
	// BaseContext parents every session; cancelling it stops in-flight frames.
	BaseContext context.Context
}

func NewRouter(hub *Hub, logger *utils.Logger, opts RouterOptions) *Router {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	upgrader := &websocket.Upgrader{
		HandshakeTimeout: timeout,
		CheckOrigin:      opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}

	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
		baseCtx:          base,
	}
}

// SetHandlerBuilder registers the builder invoked after a successful upgrade.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(builder)
}

// Register mounts the upgrade endpoint on router at path.
func (r *Router) Register(router *gin.RouterGroup, path string) {
	router.GET(path, gin.WrapF(r.Handle))
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	value := r.builder.Load()
	if value == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}
	builder := value.(HandlerBuilder)

	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	req = req.WithContext(handshakeCtx)

	spanCtx, spanEnd := observability.StartSpan(handshakeCtx, "transport.websocket", "handle",
		slog.String("remote", req.RemoteAddr),
	)
	var spanErr error
	defer func() {
		spanEnd(spanErr)
	}()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		spanErr = err
		observability.RecordMetric(spanCtx, "websocket.upgrade.error", 1, map[string]string{
			"component": "transport.websocket",
		})
		r.logger.ErrorTag("WebSocket", "upgrade failed: %v", err)
		return
	}

	sessionID := uuid.NewString()
	wsConn := NewConnection(sessionID, conn)
	r.logger.InfoTag("WebSocket", "session %s opened from %s", sessionID, req.RemoteAddr)

	handler, err := builder(wsConn, req)
	if err != nil || handler == nil {
		spanErr = err
		observability.RecordMetric(spanCtx, "websocket.connection.error", 1, map[string]string{
			"component": "transport.websocket",
			"reason":    "handler_creation_failed",
		})
		r.logger.ErrorTag("WebSocket", "create session handler failed: %v", err)
		_ = wsConn.Close()
		return
	}

	session := NewSession(r.baseCtx, handler, wsConn, r.logger)
	r.hub.Register(session)

	observability.RecordMetric(spanCtx, "websocket.connection.opened", 1, map[string]string{
		"component": "transport.websocket",
	})

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		if runErr != nil {
			r.logger.WarnTag("WebSocket", "session %s ended: %v", session.ID(), runErr)
		} else {
			r.logger.InfoTag("WebSocket", "session %s closed", session.ID())
		}
		observability.RecordMetric(session.Context(), "websocket.connection.closed", 1, map[string]string{
			"component": "transport.websocket",
		})
	})
}
