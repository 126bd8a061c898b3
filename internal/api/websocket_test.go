package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

// dialEvents waits for earlier connections to unsubscribe, then connects.
func dialEvents(t *testing.T, query string) (*websocket.Conn, func()) {
	t.Helper()
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 0 }, "earlier subscribers removed")
	s, _ := newTestServer(t)
	server := httptest.NewServer(s.Handler())
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "node.entered", "", map[string]interface{}{"i": i})
	}

	conn, done := dialEvents(t, "")
	defer done()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "node.entered" {
			t.Errorf("expected 'node.entered', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesLiveEvents(t *testing.T) {
	events.Clear()

	conn, done := dialEvents(t, "")
	defer done()
	waitFor(t, time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")

	events.Emit("info", "choice.selected", "", map[string]interface{}{"index": 1})
	if e := readEvent(t, conn); e.Name != "choice.selected" {
		t.Errorf("expected 'choice.selected', got '%s'", e.Name)
	}
}

func TestWebSocketPrefixFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", "node.entered", "", nil)
	events.Emit("info", "session.saved", "", nil)

	conn, done := dialEvents(t, "?prefix=session.")
	defer done()

	if e := readEvent(t, conn); e.Name != "session.saved" {
		t.Errorf("expected backlog filtered to 'session.saved', got '%s'", e.Name)
	}

	waitFor(t, time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")
	events.Emit("info", "node.entered", "", nil)
	events.Emit("info", "session.restored", "", nil)
	if e := readEvent(t, conn); e.Name != "session.restored" {
		t.Errorf("expected 'session.restored', got '%s'", e.Name)
	}
}

func TestWebSocketUnsubscribesOnClose(t *testing.T) {
	events.Clear()

	conn, done := dialEvents(t, "")
	waitFor(t, time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	done()
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 0 }, "subscriber removed")
}
