package mqtt

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
)

// Bridge publishes engine events to the broker.
type Bridge struct {
	conn     Conn
	topic    string
	prefixes []string
	log      *zap.Logger
}

// NewBridge publishes to topic every event whose name matches one of
// prefixes, or every event when none are given.
func NewBridge(conn Conn, topic string, log *zap.Logger, prefixes ...string) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{conn: conn, topic: topic, prefixes: prefixes, log: log.Named("bridge")}
}

// Run forwards events until ctx is done or the subscription is closed.
// Events are dropped while the broker is unreachable.
func (b *Bridge) Run(ctx context.Context) {
	sub := events.Subscribe(b.prefixes...)
	defer events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			b.forward(e)
		}
	}
}

func (b *Bridge) forward(e events.Event) {
	if !b.conn.IsConnected() {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		b.log.Error("encode event", zap.String("event", e.Name), zap.Error(err))
		return
	}
	if err := b.conn.Publish(b.topic, data); err != nil {
		b.log.Warn("publish failed", zap.String("event", e.Name), zap.Error(err))
	}
}
