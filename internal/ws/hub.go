// Package ws streams job snapshots to websocket clients. The hub fans the
// registry's subscription feed out to every connected client; clients that
// stop reading are dropped instead of stalling the feed.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/infra"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	clientBuffer   = 32
	maxMessageSize = 512
)

// Hub owns the set of connected clients and the registry subscription.
type Hub struct {
	logger   infra.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	done    chan struct{}
	cancel  func()
}

type client struct {
	conn *websocket.Conn
	send chan domain.GenerationJob
}

// NewHub starts a hub fed by the registry's change feed. Close releases the
// subscription and disconnects all clients.
func NewHub(reg *registry.Registry, logger infra.Logger, allowOrigin func(*http.Request) bool) *Hub {
	if allowOrigin == nil {
		allowOrigin = func(*http.Request) bool { return true }
	}
	feed, cancel := reg.Subscribe()
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go h.run(feed)
	return h
}

func (h *Hub) run(feed <-chan domain.GenerationJob) {
	for {
		select {
		case <-h.done:
			return
		case job, ok := <-feed:
			if !ok {
				return
			}
			h.broadcast(job)
		}
	}
}

func (h *Hub) broadcast(job domain.GenerationJob) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- job:
		default:
			// Slow reader: disconnect rather than block the feed.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan domain.GenerationJob, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writeLoop(c)
	go h.readLoop(c)
}

// writeLoop pushes job snapshots and keepalive pings to one client.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case job, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(job); err != nil {
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

// readLoop drains the connection so close and pong frames are processed.
func (h *Hub) readLoop(c *client) {
	defer h.detach(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close stops the feed and disconnects every client.
func (h *Hub) Close() {
	h.cancel()
	close(h.done)
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
}
