package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/privacypilot/internal/policy"
)

func setupServer(t *testing.T) (*policy.Store, *Hub, string) {
	t.Helper()
	p := policy.New()
	h := NewHub(p, nil)
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return p, h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/policy"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var m Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return m
}

func TestSnapshotThenUpdates(t *testing.T) {
	p, _, url := setupServer(t)
	p.UpdatePolicy(policy.ConsentState{Analytics: true})

	conn := dial(t, url)
	snap := readMessage(t, conn)
	if snap.Type != SnapshotType {
		t.Fatalf("first message type = %q, want %q", snap.Type, SnapshotType)
	}
	if !snap.Detail.Analytics || !snap.Detail.Necessary {
		t.Errorf("snapshot = %+v", snap.Detail)
	}

	p.UpdatePolicy(policy.AllGranted())
	upd := readMessage(t, conn)
	if upd.Type != policy.EventName {
		t.Errorf("update type = %q, want %q", upd.Type, policy.EventName)
	}
	if upd.Detail != policy.AllGranted() {
		t.Errorf("update detail = %+v, want full state", upd.Detail)
	}
}

func TestMultipleClients(t *testing.T) {
	p, h, url := setupServer(t)
	a := dial(t, url)
	b := dial(t, url)
	readMessage(t, a)
	readMessage(t, b)

	if n := h.ClientCount(); n != 2 {
		t.Errorf("ClientCount = %d, want 2", n)
	}

	p.UpdatePolicy(policy.ConsentState{Marketing: true})
	for _, c := range []*websocket.Conn{a, b} {
		if m := readMessage(t, c); !m.Detail.Marketing {
			t.Errorf("client got %+v", m.Detail)
		}
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	p, h, url := setupServer(t)
	conn := dial(t, url)
	readMessage(t, conn)

	h.Close()
	if p.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount = %d after Close, want 0", p.SubscriberCount())
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after hub close")
	}
}

func TestSlowClientDropped(t *testing.T) {
	p := policy.New()
	h := NewHub(p, nil)
	defer h.Close()

	slow := &client{send: make(chan []byte, 1)}
	h.mu.Lock()
	h.clients[slow] = struct{}{}
	h.mu.Unlock()

	p.UpdatePolicy(policy.AllGranted())
	p.UpdatePolicy(policy.DefaultState())

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want slow client dropped", h.ClientCount())
	}
	if _, ok := <-slow.send; !ok {
		t.Error("first queued message should still be readable")
	}
	if _, ok := <-slow.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestCheckOrigin(t *testing.T) {
	p := policy.New()
	local := NewHub(p, nil, WithAllowedOrigins("http://localhost:*", "http://127.0.0.1:*"))
	defer local.Close()
	open := NewHub(p, nil, WithAllowedOrigins("*"))
	defer open.Close()

	tests := []struct {
		name   string
		hub    *Hub
		origin string
		want   bool
	}{
		{"no origin", local, "", true},
		{"same origin", local, "http://dash.local:8080", true},
		{"localhost", local, "http://localhost:3000", true},
		{"loopback", local, "http://127.0.0.1:5173", true},
		{"cross site", local, "https://evil.example", false},
		{"localhost lookalike", local, "http://localhost.evil.example:80", false},
		{"allow all", open, "https://evil.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://dash.local:8080/ws/policy", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := tt.hub.checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestCrossSiteHandshakeRejected(t *testing.T) {
	_, h, url := setupServer(t)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		conn.Close()
		t.Fatal("cross-site handshake should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}
