package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// story
	"story.loaded":   {},
	"story.started":  {},
	"story.finished": {},
	"story.stopped":  {},

	// node
	"node.entered": {},
	"node.failed":  {},

	// choice
	"choice.selected":    {},
	"choice.unavailable": {},

	// action
	"action.executed": {},

	// session
	"session.saved":    {},
	"session.restored": {},
	"session.deleted":  {},

	// transport
	"command.received": {},
	"command.rejected": {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate fails for event names outside the known set.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
