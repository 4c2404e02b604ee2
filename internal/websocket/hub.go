// Package websocket pushes live-reload notifications to open browser tabs.
// Pages rendered with live reload enabled connect to /ws and reload
// themselves when the hub broadcasts "reload".
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/plantlog/internal/logging"
)

// ReloadMessage asks connected pages to reload.
const ReloadMessage = "reload"

const writeTimeout = 5 * time.Second

// Hub tracks connected browsers and fans messages out to them.
type Hub struct {
	mu             sync.Mutex
	clients        map[*client]struct{}
	originPatterns []string
	closed         bool
	logger         logging.Logger
}

type client struct {
	send   chan string
	cancel context.CancelFunc
}

// NewHub creates a hub. originPatterns are passed to websocket.Accept; an
// empty list only allows same-origin connections.
func NewHub(logger logging.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		clients:        make(map[*client]struct{}),
		originPatterns: originPatterns,
		logger:         logger.WithComponent("livereload"),
	}
}

// ServeHTTP upgrades the request and holds the connection until the peer
// leaves or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// Browsers never send anything; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	c := &client{send: make(chan string, 4), cancel: cancel}

	if !h.register(c) {
		cancel()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "")
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, []byte(msg))
			wcancel()
			if err != nil {
				h.logger.Debug(ctx, "dropping live reload client", "error", err.Error())
				return
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.cancel()
}

// Broadcast queues msg for every client. Slow clients miss messages rather
// than block the caller.
func (h *Hub) Broadcast(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.cancel()
	}
}
