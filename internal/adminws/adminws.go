// Package adminws serves a read-only, unauthenticated-by-design
// websocket feed of session/window lifecycle events for operator
// tooling (cmd/apu-monitor), grounded on the teacher's
// pkg/terminal/websocket.go: a dedicated writeLoop goroutine draining
// a buffered channel so no caller ever blocks on a slow client, a
// permissive CheckOrigin since this is an operations endpoint with no
// session-affecting side effects, and the same close-handshake shape.
package adminws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/benj-edwards/ascii-processing-unit/internal/protocol"
)

// Hub fans a stream of protocol.Response events out to every
// currently-connected admin websocket client.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	writeChan chan []byte
	done      chan struct{}
}

// NewHub creates a Hub ready to be mounted as an http.Handler.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast encodes ev as JSON and queues it for delivery to every
// connected client. A client whose write buffer is full misses this
// event (the client itself stays connected) rather than being allowed
// to stall the others, the same policy the session registry's own
// broadcast uses for application connections.
func (h *Hub) Broadcast(ev protocol.Response) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("adminws: marshal event failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.writeChan <- data:
		default:
			h.logger.Debug("adminws: dropping event for slow client")
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a broadcast recipient until it disconnects. This feed
// is read-only: any message is read from it purely to drive the
// close handshake.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("adminws: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, writeChan: make(chan []byte, 256), done: make(chan struct{})}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()

	conn.SetReadLimit(4096)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(c.done)
}

func (c *client) writeLoop() {
	for {
		select {
		case data := <-c.writeChan:
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	c.conn.Close()
}
