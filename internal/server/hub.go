package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zjrosen/intentui/internal/domain/catalog"
	"github.com/zjrosen/intentui/internal/log"
	"github.com/zjrosen/intentui/internal/metrics"
	"github.com/zjrosen/intentui/internal/pubsub"
)

const (
	pongWait       = 60 * time.Second
	pingInterval   = pongWait / 2
	writeWait      = 10 * time.Second
	maxMessageSize = 512
	clientBuffer   = 32
)

// ChangeSource publishes registry changes.
type ChangeSource interface {
	Subscribe(ctx context.Context) <-chan pubsub.Event[catalog.Change]
}

// LiveMessage is pushed to live reload clients.
type LiveMessage struct {
	Type      string             `json:"type"`
	Registry  string             `json:"registry,omitempty"`
	Kind      catalog.ChangeKind `json:"kind,omitempty"`
	Names     []string           `json:"names,omitempty"`
	Total     int                `json:"total,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Message types.
const (
	MessageHello  = "hello"
	MessageChange = "registry.change"
)

type liveClient struct {
	id   string
	conn *websocket.Conn
	send chan LiveMessage
}

// Hub fans registry changes out to websocket clients.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *liveClient
	unregister chan *liveClient
	broadcast  chan LiveMessage
	done       chan struct{}
	clients    atomic.Int64
	metrics    *metrics.Metrics
}

// NewHub creates a hub. Call Run before serving clients.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			// Dev pages reload from whatever origin serves them.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		broadcast:  make(chan LiveMessage, 64),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run forwards changes from sources and owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context, sources ...ChangeSource) {
	for _, src := range sources {
		events := src.Subscribe(ctx)
		go func() {
			for ev := range events {
				h.Broadcast(LiveMessage{
					Type:      MessageChange,
					Registry:  ev.Payload.Registry,
					Kind:      ev.Payload.Kind,
					Names:     ev.Payload.Names,
					Total:     ev.Payload.Total,
					Timestamp: ev.Timestamp,
				})
			}
		}()
	}

	clients := make(map[*liveClient]struct{})
	drop := func(c *liveClient) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			h.clients.Store(int64(len(clients)))
			h.metrics.SetLiveClients(len(clients))
		}
	}
	defer func() {
		for c := range clients {
			drop(c)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.clients.Store(int64(len(clients)))
			h.metrics.SetLiveClients(len(clients))
			log.Debug(log.CatHTTP, "Live reload client connected", "client", c.id)
		case c := <-h.unregister:
			drop(c)
			log.Debug(log.CatHTTP, "Live reload client disconnected", "client", c.id)
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; it reconnects and refetches.
					drop(c)
				}
			}
		}
	}
}

// Broadcast queues msg for every client. It never blocks; messages are
// dropped when the hub is behind.
func (h *Hub) Broadcast(msg LiveMessage) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warn(log.CatHTTP, "Live reload broadcast dropped", "type", msg.Type)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP upgrades the request and attaches the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.CatHTTP, "WebSocket upgrade failed", "error", err.Error())
		return
	}
	c := &liveClient{id: uuid.NewString(), conn: conn, send: make(chan LiveMessage, clientBuffer)}
	c.send <- LiveMessage{Type: MessageHello, Timestamp: time.Now()}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *liveClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and unregisters on close. A client that sends
// more than maxMessageSize bytes, or stops answering pings, is dropped.
func (h *Hub) readPump(c *liveClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug(log.CatHTTP, "WebSocket read error", "client", c.id, "error", err.Error())
			}
			return
		}
	}
}
