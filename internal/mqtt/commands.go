package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
)

var (
	ErrBadCommand     = errors.New("malformed command")
	ErrUnknownCommand = errors.New("unknown command")
)

// Driver is what commands act on. *orchestrator.Runtime satisfies it.
type Driver interface {
	Start(entry narrative.NodeRef) error
	Advance(index int) (narrative.Node, error)
	Stop() error
}

// Command is the JSON payload accepted on the command topic, e.g.
// {"command":"advance","index":1}.
type Command struct {
	Command string `json:"command"`
	Entry   string `json:"entry,omitempty"`
	Index   *int   `json:"index,omitempty"`
}

// CommandSubscriber turns messages on the command topic into runtime calls.
type CommandSubscriber struct {
	conn   Conn
	topic  string
	driver Driver
	log    *zap.Logger
}

func NewCommandSubscriber(conn Conn, topic string, driver Driver, log *zap.Logger) *CommandSubscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandSubscriber{conn: conn, topic: topic, driver: driver, log: log.Named("commands")}
}

// Subscribe registers the handler. Call it again after a reconnect.
func (s *CommandSubscriber) Subscribe() error {
	return s.conn.Subscribe(s.topic, s.handle)
}

func (s *CommandSubscriber) handle(_ paho.Client, msg paho.Message) {
	if err := s.Handle(msg.Payload()); err != nil {
		s.log.Debug("command rejected", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Handle decodes and runs one command payload.
func (s *CommandSubscriber) Handle(payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		err = fmt.Errorf("%w: %w", ErrBadCommand, err)
		s.reject("", err)
		return err
	}

	fields := map[string]interface{}{"command": cmd.Command}
	if cmd.Index != nil {
		fields["index"] = *cmd.Index
	}
	events.Emit("info", "command.received", "", fields)

	var err error
	switch cmd.Command {
	case "start":
		err = s.driver.Start(narrative.NodeRef(cmd.Entry))
	case "advance":
		index := narrative.NoIndex
		if cmd.Index != nil {
			index = *cmd.Index
		}
		_, err = s.driver.Advance(index)
	case "stop":
		err = s.driver.Stop()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
	if err != nil {
		s.reject(cmd.Command, err)
	}
	return err
}

func (s *CommandSubscriber) reject(command string, err error) {
	events.Emit("warn", "command.rejected", err.Error(), map[string]interface{}{
		"command": command,
		"topic":   s.topic,
	})
}
