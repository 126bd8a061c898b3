package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var buffer = NewRing[Event](256)

// Sink persists events outside the process, e.g. the Postgres journal.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, source string) error
}

var (
	sink          Sink
	sinkSource    string
	sinkMu        sync.RWMutex
	sinkErrLogged bool
	log           = zap.NewNop()
	observers     []func(Event)
	observersMu   sync.RWMutex
	totalCount    atomic.Int64
)

// SetSink sets where events are persisted. source tags every row.
func SetSink(s Sink, source string) {
	sinkMu.Lock()
	sink = s
	sinkSource = source
	sinkErrLogged = false
	sinkMu.Unlock()
}

// SetLogger mirrors every emitted event to l.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	sinkMu.Lock()
	log = l.Named("events")
	sinkMu.Unlock()
}

// Observe registers fn to be called synchronously for every emitted event.
func Observe(fn func(Event)) {
	observersMu.Lock()
	observers = append(observers, fn)
	observersMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	totalCount.Add(1)
	broadcast(e)

	sinkMu.RLock()
	s, source, l := sink, sinkSource, log
	sinkMu.RUnlock()

	logEvent(l, e)

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields, source); err != nil {
			reportSinkError(l, err)
		}
	}

	observersMu.RLock()
	fns := append([]func(Event){}, observers...)
	observersMu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

// reportSinkError records the first sink failure only. The system.error
// event goes straight into the buffer: going through Emit would append to
// the failing sink again.
func reportSinkError(l *zap.Logger, err error) {
	sinkMu.Lock()
	if sinkErrLogged {
		sinkMu.Unlock()
		return
	}
	sinkErrLogged = true
	sinkMu.Unlock()

	l.Error("event sink append failed", zap.Error(err))
	buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event sink append failed",
		Fields: map[string]interface{}{
			"error": err.Error(),
		},
	})
}

func logEvent(l *zap.Logger, e Event) {
	fields := make([]zap.Field, 0, len(e.Fields)+1)
	fields = append(fields, zap.String("event", e.Name))
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch e.Level {
	case "debug":
		l.Debug(e.Message, fields...)
	case "warn":
		l.Warn(e.Message, fields...)
	case "error":
		l.Error(e.Message, fields...)
	default:
		l.Info(e.Message, fields...)
	}
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns how many events were emitted since start or Clear.
func TotalCount() int64 {
	return totalCount.Load()
}

// Clear resets the event buffer and counter. Used for testing.
func Clear() {
	buffer.Clear()
	totalCount.Store(0)
}
