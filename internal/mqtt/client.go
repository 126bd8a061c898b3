// Package mqtt bridges the engine to an MQTT broker: events go out on
// <prefix>/events and commands come in on <prefix>/commands.
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
)

// Conn is the part of a broker connection the bridge and the command
// subscriber use.
type Conn interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
	IsConnected() bool
}

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	broker string
	log    *zap.Logger
	mu     sync.Mutex

	onState []func(connected bool)
}

// NewClient creates a client for cfg but does not connect. onState is
// called on every connect and connection loss.
func NewClient(cfg config.MQTTConfig, log *zap.Logger, onState ...func(connected bool)) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{broker: cfg.Broker, log: log.Named("mqtt"), onState: onState}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			c.log.Info("connected", zap.String("broker", c.broker))
			c.notify(true)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.log.Warn("connection lost", zap.Error(err))
			c.notify(false)
		})

	c.client = paho.NewClient(opts)
	return c
}

func (c *Client) notify(connected bool) {
	for _, fn := range c.onState {
		fn(connected)
	}
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &TimeoutError{Op: "connect", Topic: c.broker}
	}
	return token.Error()
}

func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// TimeoutError is returned when the broker does not answer in time.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}

// Topics derives the topic names from a prefix such as "narrative".
type Topics struct {
	Events   string
	Commands string
}

func TopicsFor(prefix string) Topics {
	return Topics{Events: prefix + "/events", Commands: prefix + "/commands"}
}
