package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/version"
)

// Metrics exposes engine counters in the Prometheus text format. Feed it
// with events.Observe(m.Observe).
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	nodesEntered     *prometheus.CounterVec
	choices          prometheus.Counter
	failures         prometheus.Counter
	sessionActive    prometheus.Gauge
	mqttConnected    prometheus.Gauge
	storageConnected prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry. storyID labels
// the build info gauge.
func NewMetrics(storyID string) *Metrics {
	reg := prometheus.NewRegistry()
	start := time.Now()

	m := &Metrics{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrative_events_total",
			Help: "Events emitted since startup, by event name.",
		}, []string{"event"}),
		nodesEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "narrative_nodes_entered_total",
			Help: "Nodes entered, by node kind.",
		}, []string{"kind"}),
		choices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrative_choices_selected_total",
			Help: "Choice options selected.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "narrative_node_failures_total",
			Help: "Nodes whose actions failed or whose successor is missing.",
		}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "narrative_session_active",
			Help: "Whether a story session is running (1) or not (0).",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "narrative_mqtt_connected",
			Help: "Whether the MQTT broker is connected (1) or not (0).",
		}),
		storageConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "narrative_storage_connected",
			Help: "Whether the save store is reachable (1) or not (0).",
		}),
	}

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "narrative_build_info",
		Help:        "Build information.",
		ConstLabels: prometheus.Labels{"version": version.Version, "story": storyID},
	})
	buildInfo.Set(1)

	reg.MustRegister(
		m.events, m.nodesEntered, m.choices, m.failures,
		m.sessionActive, m.mqttConnected, m.storageConnected, buildInfo,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "narrative_uptime_seconds",
			Help: "Seconds since the engine started.",
		}, func() float64 { return time.Since(start).Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "narrative_event_subscribers",
			Help: "Active event stream subscribers (WebSocket and MQTT).",
		}, func() float64 { return float64(events.SubscriberCount()) }),
		collectors.NewGoCollector(),
	)
	return m
}

// Observe updates the collectors for one event.
func (m *Metrics) Observe(e events.Event) {
	m.events.WithLabelValues(e.Name).Inc()
	switch e.Name {
	case "node.entered":
		kind, _ := e.Fields["kind"].(string)
		m.nodesEntered.WithLabelValues(kind).Inc()
	case "choice.selected":
		m.choices.Inc()
	case "node.failed":
		m.failures.Inc()
		m.sessionActive.Set(0)
	case "story.started":
		m.sessionActive.Set(1)
	case "story.finished", "story.stopped":
		m.sessionActive.Set(0)
	case "session.restored":
		if state, _ := e.Fields["state"].(string); state == "active" {
			m.sessionActive.Set(1)
		} else {
			m.sessionActive.Set(0)
		}
	}
}

func (m *Metrics) SetMQTTConnected(ok bool)    { m.mqttConnected.Set(boolValue(ok)) }
func (m *Metrics) SetStorageConnected(ok bool) { m.storageConnected.Set(boolValue(ok)) }

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
