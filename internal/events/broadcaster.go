package events

import (
	"strings"
	"sync"
)

// Subscriber represents a channel that receives events.
type Subscriber chan Event

// Broadcaster fans events out to WebSocket and MQTT subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[Subscriber][]string
}

var broadcaster = &Broadcaster{
	subscribers: make(map[Subscriber][]string),
}

// Subscribe adds a new subscriber and returns its channel. With prefixes,
// only events whose name starts with one of them are delivered.
func Subscribe(prefixes ...string) Subscriber {
	ch := make(Subscriber, 64)
	broadcaster.mu.Lock()
	broadcaster.subscribers[ch] = append([]string{}, prefixes...)
	broadcaster.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// subscribers are ignored.
func Unsubscribe(sub Subscriber) {
	broadcaster.mu.Lock()
	_, ok := broadcaster.subscribers[sub]
	delete(broadcaster.subscribers, sub)
	broadcaster.mu.Unlock()
	if ok {
		close(sub)
	}
}

// broadcast sends an event to all interested subscribers.
// Non-blocking: if a subscriber's buffer is full, the event is dropped for that subscriber.
func broadcast(e Event) {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()

	for sub, prefixes := range broadcaster.subscribers {
		if !matches(e.Name, prefixes) {
			continue
		}
		select {
		case sub <- e:
		default:
		}
	}
}

func matches(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()
	return len(broadcaster.subscribers)
}

// RecentEvents returns the last n events from the ring buffer.
// If n is greater than available events, returns all available.
func RecentEvents(n int) []Event {
	all := buffer.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// RecentMatching is RecentEvents restricted to names with one of prefixes.
// The limit applies after filtering.
func RecentMatching(n int, prefixes ...string) []Event {
	var out []Event
	for _, e := range buffer.Snapshot() {
		if matches(e.Name, prefixes) {
			out = append(out, e)
		}
	}
	if n <= 0 || n >= len(out) {
		return out
	}
	return out[len(out)-n:]
}

// CloseAllSubscribers closes and removes every subscriber. Used at shutdown.
func CloseAllSubscribers() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	for sub := range broadcaster.subscribers {
		close(sub)
	}
	broadcaster.subscribers = make(map[Subscriber][]string)
}
