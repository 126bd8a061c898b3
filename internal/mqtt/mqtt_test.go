package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/orchestrator"
)

// mockConn records publishes and lets tests deliver messages.
type mockConn struct {
	mu            sync.Mutex
	connected     bool
	published     map[string][][]byte
	subscriptions map[string]paho.MessageHandler
}

func newMockConn() *mockConn {
	return &mockConn{
		connected:     true,
		published:     make(map[string][][]byte),
		subscriptions: make(map[string]paho.MessageHandler),
	}
}

func (m *mockConn) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = append(m.published[topic], payload)
	return nil
}

func (m *mockConn) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockConn) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConn) setConnected(ok bool) {
	m.mu.Lock()
	m.connected = ok
	m.mu.Unlock()
}

func (m *mockConn) publishedTo(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte{}, m.published[topic]...)
}

func (m *mockConn) deliver(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newRuntime(t *testing.T) *orchestrator.Runtime {
	t.Helper()
	story, err := orchestrator.LoadStory("testdata/story.json")
	if err != nil {
		t.Fatalf("failed to load story: %v", err)
	}
	return orchestrator.NewRuntime(story)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for: %s", msg)
}

func eventNames(since int) []string {
	var names []string
	for _, e := range events.Snapshot()[since:] {
		names = append(names, e.Name)
	}
	return names
}

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("narrative")
	if topics.Events != "narrative/events" || topics.Commands != "narrative/commands" {
		t.Errorf("unexpected topics %+v", topics)
	}
}

func TestCommandsDriveRuntime(t *testing.T) {
	events.Clear()
	conn := newMockConn()
	rt := newRuntime(t)
	topics := TopicsFor("narrative")

	sub := NewCommandSubscriber(conn, topics.Commands, rt, nil)
	if err := sub.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn.deliver(topics.Commands, []byte(`{"command":"start"}`))
	if rt.State() != orchestrator.StateActive {
		t.Fatalf("expected active session, got %s", rt.State())
	}

	conn.deliver(topics.Commands, []byte(`{"command":"advance"}`))
	if node, _ := rt.Current(); node.Identity().ID != "fork" {
		t.Fatalf("expected fork, got %s", node.Identity().ID)
	}

	conn.deliver(topics.Commands, []byte(`{"command":"advance","index":1}`))
	if node, _ := rt.Current(); node.Identity().ID != "road" {
		t.Fatalf("expected road, got %s", node.Identity().ID)
	}

	conn.deliver(topics.Commands, []byte(`{"command":"stop"}`))
	if rt.State() != orchestrator.StateIdle {
		t.Errorf("expected idle session, got %s", rt.State())
	}

	received := 0
	for _, name := range eventNames(0) {
		if name == "command.received" {
			received++
		}
	}
	if received != 4 {
		t.Errorf("expected 4 command.received events, got %d", received)
	}
}

func TestCommandRejections(t *testing.T) {
	rt := newRuntime(t)
	sub := NewCommandSubscriber(newMockConn(), "narrative/commands", rt, nil)

	cases := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `advance`, ErrBadCommand},
		{"unknown command", `{"command":"jump"}`, ErrUnknownCommand},
		{"advance while idle", `{"command":"advance","index":0}`, orchestrator.ErrNotActive},
		{"stop while idle", `{"command":"stop"}`, orchestrator.ErrNotActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events.Clear()
			err := sub.Handle([]byte(tc.payload))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			names := eventNames(0)
			if len(names) == 0 || names[len(names)-1] != "command.rejected" {
				t.Errorf("expected command.rejected, got %v", names)
			}
		})
	}
}

func TestUnavailableChoiceRejected(t *testing.T) {
	rt := newRuntime(t)
	sub := NewCommandSubscriber(newMockConn(), "narrative/commands", rt, nil)

	if err := sub.Handle([]byte(`{"command":"start"}`)); err != nil {
		t.Fatal(err)
	}
	if err := sub.Handle([]byte(`{"command":"advance"}`)); err != nil {
		t.Fatal(err)
	}
	err := sub.Handle([]byte(`{"command":"advance","index":0}`))
	if !errors.Is(err, orchestrator.ErrChoiceUnavailable) {
		t.Fatalf("expected ErrChoiceUnavailable, got %v", err)
	}
	if node, _ := rt.Current(); node.Identity().ID != "fork" {
		t.Errorf("session should stay on fork, got %s", node.Identity().ID)
	}
}

func TestBridgePublishesEvents(t *testing.T) {
	events.Clear()
	conn := newMockConn()
	topic := TopicsFor("narrative").Events

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := events.SubscriberCount()
	done := make(chan struct{})
	go func() {
		NewBridge(conn, topic, nil, "node.").Run(ctx)
		close(done)
	}()
	waitFor(t, time.Second, func() bool { return events.SubscriberCount() > before }, "bridge subscribed")

	events.Emit("info", "story.started", "", nil)
	events.Emit("info", "node.entered", "", map[string]interface{}{"node_id": "arrive"})
	waitFor(t, time.Second, func() bool { return len(conn.publishedTo(topic)) == 1 }, "event published")

	var e events.Event
	if err := json.Unmarshal(conn.publishedTo(topic)[0], &e); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if e.Name != "node.entered" || e.Fields["node_id"] != "arrive" {
		t.Errorf("unexpected event %+v", e)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridgeDropsWhileDisconnected(t *testing.T) {
	conn := newMockConn()
	conn.setConnected(false)
	b := NewBridge(conn, "narrative/events", nil)

	b.forward(events.Event{Name: "node.entered"})
	if got := conn.publishedTo("narrative/events"); len(got) != 0 {
		t.Errorf("expected nothing published, got %d", len(got))
	}
}
