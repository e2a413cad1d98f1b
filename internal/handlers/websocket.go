package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// Event types sent over WebSocket
const (
	EventCelebration = "celebration"
)

// WSEvent is the JSON message sent to connected clients
type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// writeWait bounds a single write so a stalled client cannot hold the hub.
const writeWait = 5 * time.Second

// socket is the part of a websocket connection the hub writes to.
type socket interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// Hub fans celebrations out to every connected client.
type Hub struct {
	mu       sync.Mutex
	conns    map[socket]bool
	log      logrus.FieldLogger
	onChange func(clients int)
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		conns: make(map[socket]bool),
		log:   log,
	}
}

// OnChange registers a callback that receives the client count after
// every register and unregister.
func (h *Hub) OnChange(fn func(clients int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

func (h *Hub) register(conn socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
	h.log.WithField("clients", len(h.conns)).Debug("WS register")
	if h.onChange != nil {
		h.onChange(len(h.conns))
	}
}

func (h *Hub) unregister(conn socket) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
	h.log.WithField("clients", len(h.conns)).Debug("WS unregister")
	if h.onChange != nil {
		h.onChange(len(h.conns))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends an event to every connection. Writes hold the hub lock
// since a websocket connection allows one writer at a time.
func (h *Hub) Broadcast(event WSEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("WS broadcast marshal error")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return
	}
	h.log.WithFields(logrus.Fields{"type": event.Type, "clients": len(h.conns)}).Debug("WS broadcast")
	for c := range h.conns {
		if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.log.WithError(err).Warn("WS set deadline error")
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithError(err).Warn("WS write error")
		}
	}
}

// Celebrate broadcasts a celebration to every live client.
func (h *Hub) Celebrate(_ context.Context, c models.Celebration) error {
	h.Broadcast(WSEvent{Type: EventCelebration, Data: c})
	return nil
}

// WebSocketUpgrade rejects requests that are not websocket upgrades
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// Handle serves one celebration stream connection until the client leaves.
func (h *Hub) Handle(c *websocket.Conn) {
	h.register(c)
	defer h.unregister(c)

	// Keep connection alive; clients only send pings/keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
