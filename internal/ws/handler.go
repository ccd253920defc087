// Package ws accepts client connections, registers them on the bus, and
// feeds inbound tasks to the dispatcher.
package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/bus"
	"github.com/webpilot/backend/internal/dispatch"
	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // UI is served from a different origin in dev
	},
}

// Handler manages WebSocket connections.
type Handler struct {
	hub        *bus.Hub
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

// NewHandler creates a connection handler.
func NewHandler(hub *bus.Hub, dispatcher *dispatch.Dispatcher, logger *logging.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleConnection upgrades the request, registers the connection, and
// forwards each inbound text frame to the dispatcher as a task.
func (h *Handler) HandleConnection(c *gin.Context) {
	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := bus.NewConn(uuid.NewString(), wsConn)
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		conn.Close()
	}()

	if err := conn.SendEvent(types.Connected("Server ready")); err != nil {
		h.logger.Warn("handshake send failed", zap.String("conn", conn.ID), zap.Error(err))
		return
	}

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			h.logger.Info("websocket read ended", zap.String("conn", conn.ID), zap.Error(err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		task := string(data)
		h.logger.Info("task received", zap.String("conn", conn.ID), zap.String("task", task))

		// Tasks run concurrently; ordering is only guaranteed within a
		// single dispatch. A failure that escapes the dispatcher is
		// reported to the originating connection only.
		go h.runTask(conn, task)
	}
}

func (h *Handler) runTask(conn *bus.Conn, task string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("task processing panicked",
				zap.String("conn", conn.ID),
				zap.Any("panic", r))
			if err := conn.SendEvent(types.Error(fmt.Sprintf("%v", r))); err != nil {
				h.logger.Warn("error report failed", zap.String("conn", conn.ID), zap.Error(err))
			}
		}
	}()

	h.dispatcher.Dispatch(context.Background(), task)
}
