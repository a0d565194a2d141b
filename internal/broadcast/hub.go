// Package broadcast pushes policy changes to in-page scripts over WebSocket.
package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// SnapshotType is the message type sent once on connect.
const SnapshotType = "snapshot"

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Message is the wire format. Detail is always the full state.
type Message struct {
	Type   string              `json:"type"`
	Detail policy.ConsentState `json:"detail"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays every policy update to all connected clients. A client that
// falls sendBuffer messages behind is disconnected.
type Hub struct {
	policy   *policy.Store
	metrics  *metrics.Metrics
	unsub    func()
	origins  []string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins admits cross-origin pages whose Origin matches one of
// patterns, e.g. "http://localhost:*". "*" admits every origin.
func WithAllowedOrigins(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = append(h.origins, patterns...) }
}

// NewHub subscribes to p. Without options only same-origin pages and clients
// sending no Origin may connect. Call Close to unsubscribe and drop all clients.
func NewHub(p *policy.Store, m *metrics.Metrics, opts ...HubOption) *Hub {
	h := &Hub{
		policy:  p,
		metrics: m,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	h.unsub = p.Subscribe(h.broadcast)
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, pattern := range h.origins {
		if pattern == "*" {
			return true
		}
		if ok, _ := doublestar.Match(strings.ToLower(pattern), strings.ToLower(origin)); ok {
			return true
		}
	}
	log.Printf("broadcast: rejected origin %s", origin)
	return false
}

// RegisterRoutes mounts the broadcast channel at /ws/policy.
func RegisterRoutes(r chi.Router, h *Hub) {
	r.Get("/ws/policy", h.ServeHTTP)
}

func encode(typ string, s policy.ConsentState) []byte {
	b, _ := json.Marshal(Message{Type: typ, Detail: s})
	return b
}

func (h *Hub) broadcast(s policy.ConsentState) {
	msg := encode(policy.EventName, s)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Printf("broadcast: dropping slow client")
			h.removeLocked(c)
		}
	}
}

// ServeHTTP upgrades the connection and streams policy messages until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("broadcast: websocket upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	// Queued under the lock so no update can overtake the snapshot.
	c.send <- encode(SnapshotType, h.policy.GetSnapshot())
	h.clients[c] = struct{}{}
	h.metrics.SetBroadcastClients(len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetBroadcastClients(len(h.clients))
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("broadcast: websocket read: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("broadcast: websocket write: %v", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from the policy store and disconnects every client.
func (h *Hub) Close() {
	h.unsub()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
