package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readMap(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := c.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop(), func(*http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	c := dial(t, srv)
	other := dial(t, srv)

	if err := c.WriteJSON(ClientMsg{Type: "subscribe", EventID: "500"}); err != nil {
		t.Fatal(err)
	}
	if ack := readMap(t, c); ack["type"] != "subscribed" {
		t.Fatalf("ack = %v", ack)
	}
	if err := other.WriteJSON(ClientMsg{Type: "subscribe", EventID: "501"}); err != nil {
		t.Fatal(err)
	}
	readMap(t, other)

	Dispatch(hub, []byte(`{"eventId":"500","payload":{"event_id":"500","quotes":{"outcome1":1.9}}}`), zap.NewNop())

	got := readMap(t, c)
	if got["eventId"] != "500" {
		t.Fatalf("broadcast = %v", got)
	}
	payload, _ := json.Marshal(got["payload"])
	if !strings.Contains(string(payload), `"outcome1":1.9`) {
		t.Errorf("payload = %s", payload)
	}

	// o outro cliente só ouve o 501: o próximo frame dele é o pong
	_ = other.WriteJSON(ClientMsg{Type: "ping"})
	if m := readMap(t, other); m["type"] != "pong" {
		t.Errorf("other got %v before pong", m)
	}

	_ = c.WriteJSON(ClientMsg{Type: "unsubscribe", EventID: "500"})
	_ = c.WriteJSON(ClientMsg{Type: "ping"})
	if m := readMap(t, c); m["type"] != "pong" {
		t.Fatalf("got %v, want pong", m)
	}
	if n := hub.Subscribers("500"); n != 0 {
		t.Errorf("subscribers = %d after unsubscribe", n)
	}
	if n := hub.Subscribers("501"); n != 1 {
		t.Errorf("subscribers(501) = %d", n)
	}
}

func TestDispatchIgnoresBadMessages(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	Dispatch(hub, []byte(`not json`), zap.NewNop())
	Dispatch(hub, []byte(`{"payload":{}}`), zap.NewNop())
}
