// Package realtime owns the live WebSocket connections: the hub that fans
// events out to every connected client and the per-connection lifecycle
// that hydrates, reads and writes each socket.
package realtime

import (
	"log/slog"
	"sync"

	"huddle/internal/events"
)

// Client is one connected socket as seen by the hub. It holds no state
// beyond its id and its outbound queue.
type Client struct {
	ID   string
	send chan []byte
}

func newClient(id string, queueSize int) *Client {
	return &Client{ID: id, send: make(chan []byte, queueSize)}
}

// Hub maintains the set of connected clients and delivers events to them.
// Delivery is fire-and-forget: a client that is not registered at the moment
// of a broadcast never sees that event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()

	connectedClients.Set(float64(count))
	h.logger.Debug("client registered", slog.String("client", c.ID), slog.Int("clients", count))
}

// Unregister removes a client and closes its queue. Repeated calls are no-ops.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	count := len(h.clients)
	h.mu.Unlock()

	if removed {
		connectedClients.Set(float64(count))
		h.logger.Debug("client unregistered", slog.String("client", c.ID), slog.Int("clients", count))
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	current, ok := h.clients[c.ID]
	if !ok || current != c {
		return false
	}
	delete(h.clients, c.ID)
	close(c.send)
	return true
}

// Broadcast delivers e to every registered client.
func (h *Hub) Broadcast(e events.Event) {
	h.BroadcastExcept(e, "")
}

// BroadcastExcept delivers e to every registered client except excludeID.
func (h *Hub) BroadcastExcept(e events.Event, excludeID string) {
	frame, err := events.Encode(e)
	if err != nil {
		h.logger.Error("failed to encode broadcast", slog.String("event", string(e.Name())), slog.String("error", err.Error()))
		return
	}
	broadcastsTotal.WithLabelValues(string(e.Name())).Inc()

	var slow []*Client
	h.mu.RLock()
	for id, c := range h.clients {
		if id == excludeID {
			continue
		}
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("client send queue full; disconnecting", slog.String("client", c.ID))
		droppedClients.Inc()
		h.Unregister(c)
	}
}

// Send delivers e to a single client. It reports false when the client is
// gone or its queue is full.
func (h *Hub) Send(clientID string, e events.Event) bool {
	frame, err := events.Encode(e)
	if err != nil {
		h.logger.Error("failed to encode event", slog.String("event", string(e.Name())), slog.String("error", err.Error()))
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	connectedClients.Set(0)
}
