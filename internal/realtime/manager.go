package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"huddle/internal/events"
	"huddle/internal/models"
)

// Handler is what a connection delegates to: the chat history used for
// hydration and the mutation handlers for inbound events.
type Handler interface {
	ChatHistory(ctx context.Context) ([]models.ChatMessage, error)
	HandleEvent(ctx context.Context, clientID string, e events.Event) error
}

// Options tunes the per-connection behaviour.
type Options struct {
	QueueSize       int
	MaxMessageBytes int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	// EventsPerSecond and Burst bound inbound events per connection.
	EventsPerSecond float64
	Burst           int
}

// DefaultOptions returns the settings used by the server.
func DefaultOptions() Options {
	return Options{
		QueueSize:       256,
		MaxMessageBytes: 2 * models.MaxTextBytes,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		EventsPerSecond: 10,
		Burst:           20,
	}
}

// Manager accepts WebSocket connections and runs each one from Connected
// to Disconnected.
type Manager struct {
	hub      *Hub
	handler  Handler
	logger   *slog.Logger
	opts     Options
	upgrader websocket.Upgrader
}

// NewManager wires a manager to its hub and handler.
func NewManager(hub *Hub, handler Handler, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		hub:     hub,
		handler: handler,
		logger:  logger,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeWS upgrades the request and blocks until the connection ends.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := newClient(uuid.NewString(), m.opts.QueueSize)
	m.hub.Register(client)
	m.logger.Info("client connected", slog.String("client", client.ID), slog.String("remote", r.RemoteAddr))

	go m.writePump(conn, client)
	m.hydrate(ctx, client)
	m.readPump(ctx, conn, client)

	m.hub.Unregister(client)
	m.logger.Info("client disconnected", slog.String("client", client.ID))
}

// hydrate sends the full chat log to a client that just registered. Events
// broadcast between registration and this call are queued ahead of it.
func (m *Manager) hydrate(ctx context.Context, client *Client) {
	history, err := m.handler.ChatHistory(ctx)
	if err != nil {
		m.logger.Error("failed to load chat history", slog.String("client", client.ID), slog.String("error", err.Error()))
		m.hub.Send(client.ID, events.Error{Message: "failed to load chat history"})
		return
	}
	m.hub.Send(client.ID, events.ChatLog{Messages: history})
}

func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	defer conn.Close()

	conn.SetReadLimit(m.opts.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(m.opts.EventsPerSecond), m.opts.Burst)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read failed", slog.String("client", client.ID), slog.String("error", err.Error()))
			}
			return
		}

		if !limiter.Allow() {
			inboundEvents.WithLabelValues("", "rate_limited").Inc()
			m.reply(client, "rate limit exceeded, please slow down")
			continue
		}

		e, err := events.Decode(frame)
		if err != nil {
			inboundEvents.WithLabelValues("", "malformed").Inc()
			m.reply(client, err.Error())
			continue
		}
		if !events.Inbound(e) {
			inboundEvents.WithLabelValues(string(e.Name()), "rejected").Inc()
			m.reply(client, fmt.Sprintf("event %s cannot be sent by clients", e.Name()))
			continue
		}

		if err := m.handler.HandleEvent(ctx, client.ID, e); err != nil {
			inboundEvents.WithLabelValues(string(e.Name()), "error").Inc()
			m.reply(client, err.Error())
			continue
		}
		inboundEvents.WithLabelValues(string(e.Name()), "ok").Inc()
	}
}

func (m *Manager) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(m.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Debug("websocket write failed", slog.String("client", client.ID), slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) reply(client *Client, msg string) {
	m.hub.Send(client.ID, events.Error{Message: msg})
}
