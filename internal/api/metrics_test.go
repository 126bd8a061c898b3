package api

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics("crossroads")

	m.Observe(events.Event{Name: "story.started"})
	m.Observe(events.Event{Name: "node.entered", Fields: map[string]interface{}{"kind": "Linear"}})
	m.Observe(events.Event{Name: "node.entered", Fields: map[string]interface{}{"kind": "Choice"}})
	m.Observe(events.Event{Name: "node.entered", Fields: map[string]interface{}{"kind": "Linear"}})
	m.Observe(events.Event{Name: "choice.selected"})

	if got := testutil.ToFloat64(m.nodesEntered.WithLabelValues("Linear")); got != 2 {
		t.Errorf("expected 2 Linear entries, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("node.entered")); got != 3 {
		t.Errorf("expected 3 node.entered events, got %v", got)
	}
	if got := testutil.ToFloat64(m.choices); got != 1 {
		t.Errorf("expected 1 choice, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionActive); got != 1 {
		t.Errorf("expected active session, got %v", got)
	}

	m.Observe(events.Event{Name: "node.failed"})
	if testutil.ToFloat64(m.failures) != 1 || testutil.ToFloat64(m.sessionActive) != 0 {
		t.Error("node.failed should count a failure and end the session")
	}

	m.Observe(events.Event{Name: "session.restored", Fields: map[string]interface{}{"state": "active"}})
	if testutil.ToFloat64(m.sessionActive) != 1 {
		t.Error("restoring an active session should mark it active")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics("crossroads")
	s, _ := newTestServer(t, WithMetrics(m))
	s.SetMQTTConnected(true)
	m.Observe(events.Event{Name: "story.started"})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	for _, want := range []string{
		"narrative_mqtt_connected 1",
		`narrative_events_total{event="story.started"} 1`,
		"narrative_uptime_seconds",
		`story="crossroads"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
