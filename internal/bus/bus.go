// Package bus broadcasts serialized events to every connected client.
package bus

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/monitoring"
	"github.com/webpilot/backend/internal/types"
)

// TextMessage mirrors websocket.TextMessage without importing gorilla
// here; the ws package owns the transport.
const TextMessage = 1

// wire is the minimal connection surface needed for delivery. Satisfied
// by *websocket.Conn.
type wire interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one registered client connection. Writes are serialized
// through a mutex: the underlying transport allows one writer at a time.
type Conn struct {
	ID string

	mu sync.Mutex
	ws wire
}

// NewConn wraps an accepted connection.
func NewConn(id string, ws wire) *Conn {
	return &Conn{ID: id, ws: ws}
}

// Send writes a pre-serialized payload to the connection.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(TextMessage, payload)
}

// SendEvent serializes and writes a single event to this connection
// only. Used for the connected handshake and inbound-parse errors.
func (c *Conn) SendEvent(ev types.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Hub holds the connection set and fans events out to it. The set is
// mutated concurrently by connects and disconnects; broadcast snapshots
// it so removal during iteration is safe.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*Conn]struct{}
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHub creates an empty hub. metrics may be nil.
func NewHub(logger *logging.Logger, metrics *monitoring.Metrics) *Hub {
	return &Hub{
		conns:   make(map[*Conn]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a connection to the broadcast set.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(n))
	}
	h.logger.Info("client connected", zap.String("conn", c.ID), zap.Int("total", n))
}

// Unregister removes a connection. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	_, present := h.conns[c]
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()

	if !present {
		return
	}
	if h.metrics != nil {
		h.metrics.WSConnections.Set(float64(n))
	}
	h.logger.Info("client disconnected", zap.String("conn", c.ID), zap.Int("total", n))
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast serializes the event once and delivers it to every
// registered connection. A failed delivery is logged and drops only that
// connection; it never prevents delivery to the others and never
// surfaces to the caller.
func (h *Hub) Broadcast(ev types.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("event marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.logger.Warn("broadcast delivery failed",
				zap.String("conn", c.ID),
				zap.String("type", ev.Type),
				zap.Error(err))
			h.Unregister(c)
		}
	}

	if h.metrics != nil {
		h.metrics.EventsBroadcast.WithLabelValues(ev.Type).Inc()
	}
}
