package api

import (
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert kinds
const (
	AlertNodeFailed       = "node_failed"
	AlertSystemError      = "system_error"
	AlertMQTTDisconnected = "mqtt_disconnected"
)

// AlertPayload is the JSON body posted to the webhook.
type AlertPayload struct {
	Story     string                 `json:"story"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Alerter posts failures to a webhook. Without a URL alerts are only logged.
type Alerter struct {
	url    string
	story  string
	client *resty.Client
	log    *zap.Logger

	// MQTTDisconnectDelay is how long the broker must be gone before alerting.
	MQTTDisconnectDelay time.Duration

	mu                    sync.Mutex
	mqttDisconnectedSince time.Time
	mqttAlertSent         bool
	wg                    sync.WaitGroup
}

func NewAlerter(url, story string, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		url:                 url,
		story:               story,
		client:              resty.New().SetTimeout(10 * time.Second).SetRetryCount(2),
		log:                 log.Named("alerts"),
		MQTTDisconnectDelay: 30 * time.Second,
	}
}

// Observe raises an alert for failure events. Register it with
// events.Observe.
func (a *Alerter) Observe(e events.Event) {
	switch e.Name {
	case "node.failed":
		a.Send(AlertNodeFailed, SeverityWarning, e.Message, e.Fields)
	case "system.error":
		a.Send(AlertSystemError, SeverityCritical, e.Message, e.Fields)
	}
}

// Send posts an alert in the background.
func (a *Alerter) Send(event, severity, message string, details map[string]interface{}) {
	if a.url == "" {
		a.log.Warn("alert", zap.String("event", event), zap.String("severity", severity),
			zap.String("msg", message), zap.Any("details", details))
		return
	}

	payload := AlertPayload{
		Story:     a.story,
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   message,
		Details:   details,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.post(payload)
	}()
}

func (a *Alerter) post(payload AlertPayload) {
	resp, err := a.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(a.url)
	if err != nil {
		a.log.Error("webhook POST failed", zap.Error(err))
		return
	}
	if resp.StatusCode() >= 300 {
		a.log.Error("webhook rejected alert", zap.Int("status", resp.StatusCode()))
	}
}

// Wait blocks until every pending alert has been posted.
func (a *Alerter) Wait() { a.wg.Wait() }

// CheckMQTT tracks broker connectivity and alerts once the broker has been
// gone for MQTTDisconnectDelay, and again when it comes back.
func (a *Alerter) CheckMQTT(connected bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()

	if connected {
		if a.mqttAlertSent {
			a.Send(AlertMQTTDisconnected, SeverityInfo, "MQTT connection restored", map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
		}
		a.mqttDisconnectedSince = time.Time{}
		a.mqttAlertSent = false
		return
	}

	if a.mqttDisconnectedSince.IsZero() {
		a.mqttDisconnectedSince = now
	}
	down := now.Sub(a.mqttDisconnectedSince)
	if !a.mqttAlertSent && down >= a.MQTTDisconnectDelay {
		a.mqttAlertSent = true
		a.Send(AlertMQTTDisconnected, SeverityWarning, "MQTT broker disconnected", map[string]interface{}{
			"disconnected_since":   a.mqttDisconnectedSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(down.Seconds()),
		})
	}
}
