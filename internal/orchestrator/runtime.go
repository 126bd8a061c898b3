package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/inventory"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/services"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

var (
	ErrNotActive         = errors.New("no active story")
	ErrAlreadyActive     = errors.New("story already active")
	ErrChoiceUnavailable = errors.New("choice unavailable")
	ErrEmptyStory        = errors.New("story has no nodes")
)

// Runtime drives one story session. It is caller-driven: nothing happens
// between calls. All methods are safe for concurrent use. The context and
// stores returned by Context and Variables are not; they are replaced on
// every Start and Stop, so concurrent readers should use Snapshot.
type Runtime struct {
	mu sync.Mutex

	story    *Story
	services *services.Registry
	global   *variables.Store
	local    *variables.Store
	ctx      *narrative.GameContext
	log      *zap.Logger

	sessionID string
	state     State
	current   narrative.Node
	history   []Step
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithServices replaces the service registry. The default registry holds an
// in-memory inventory over the story catalog.
func WithServices(s *services.Registry) Option {
	return func(r *Runtime) { r.services = s }
}

// WithGlobal shares a global store across runtimes.
func WithGlobal(s *variables.Store) Option {
	return func(r *Runtime) { r.global = s }
}

func WithSessionID(id string) Option {
	return func(r *Runtime) { r.sessionID = id }
}

// NewRuntime creates an idle runtime for story.
func NewRuntime(story *Story, opts ...Option) *Runtime {
	r := &Runtime{
		story:     story,
		log:       zap.NewNop(),
		sessionID: "default",
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.services == nil {
		r.services = services.NewRegistry()
		_ = r.services.Register(inventory.ServiceName, inventory.NewMemory(story.Catalog))
	}
	if r.global == nil {
		r.global = variables.NewStore("global")
	}
	for _, v := range story.Global {
		if err := r.global.Declare(v); err != nil {
			r.log.Warn("skipping global declaration", zap.String("variable", v.Name), zap.Error(err))
		}
	}
	r.local = r.newLocal()
	r.ctx = narrative.NewGameContext(variables.NewContext(r.local, r.global), r.services)
	r.log = r.log.Named("runtime").With(zap.String("session_id", r.sessionID), zap.String("story_id", story.ID))
	return r
}

func (r *Runtime) newLocal() *variables.Store {
	local := variables.NewStore("local")
	for _, v := range r.story.Local {
		// declarations were validated when the story was decoded
		_ = local.Declare(v)
	}
	return local
}

func (r *Runtime) Story() *Story                { return r.story }
func (r *Runtime) SessionID() string            { return r.sessionID }
func (r *Runtime) Services() *services.Registry { return r.services }

// Context returns the execution context conditions and actions run against.
func (r *Runtime) Context() narrative.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// Variables returns the variable namespace of the session.
func (r *Runtime) Variables() *variables.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx.Variables()
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Current returns the node the session is on.
func (r *Runtime) Current() (narrative.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// History returns the visited steps, oldest first.
func (r *Runtime) History() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step{}, r.history...)
}

// Start begins the story at entry. An empty entry uses the story entry, or
// the first node when the story names none. The local store is reset.
func (r *Runtime) Start(entry narrative.NodeRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateActive {
		return ErrAlreadyActive
	}

	if entry == narrative.None {
		entry = r.story.Entry
	}
	if entry == narrative.None {
		first := r.story.Graph.Entry()
		if first == nil {
			return ErrEmptyStory
		}
		entry = narrative.NodeRef(first.Identity().ID)
	}
	node, err := r.story.Graph.Node(entry)
	if err != nil {
		return err
	}

	r.resetLocked()
	r.state = StateActive
	r.emitEvent("info", "story.started", map[string]interface{}{"entry": string(entry)})
	return r.enterLocked(node)
}

// Advance leaves the current node. Choice nodes need the index of an
// available option; other nodes ignore index. It returns the node entered,
// or nil when the story finished.
func (r *Runtime) Advance(index int) (narrative.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateActive || r.current == nil {
		return nil, ErrNotActive
	}
	from := r.current.Identity().ID

	if choice, ok := r.current.(*narrative.Choice); ok {
		opt, err := choice.Choice(index)
		if err != nil {
			return nil, err
		}
		if !opt.Available(r.ctx) {
			r.emitEvent("warn", "choice.unavailable", map[string]interface{}{"node_id": from, "index": index})
			return nil, fmt.Errorf("%w: node %q option %d", ErrChoiceUnavailable, from, index)
		}
		r.history[len(r.history)-1].Choice = index
		r.emitEvent("info", "choice.selected", map[string]interface{}{
			"node_id": from,
			"index":   index,
			"text":    opt.Text,
		})
	}

	next, err := r.current.FetchNextNode(index)
	if err != nil {
		return nil, err
	}
	if next == narrative.None {
		r.state = StateFinished
		r.emitEvent("info", "story.finished", map[string]interface{}{"last_node": from, "steps": len(r.history)})
		return nil, nil
	}

	node, err := r.story.Graph.Node(next)
	if err != nil {
		r.failLocked(from, err)
		return nil, err
	}
	if err := r.enterLocked(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Stop abandons the session and returns to idle.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateIdle {
		return ErrNotActive
	}
	last := ""
	if r.current != nil {
		last = r.current.Identity().ID
	}
	r.emitEvent("info", "story.stopped", map[string]interface{}{"last_node": last, "state": string(r.state)})
	r.resetLocked()
	return nil
}

// View describes the current position for presentation.
func (r *Runtime) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{State: r.state}
	if r.current == nil {
		return v
	}
	v.NodeID = r.current.Identity().ID
	v.Kind = r.current.Kind()
	v.Text = r.current.Text()
	if choice, ok := r.current.(*narrative.Choice); ok {
		for i, opt := range choice.Choices {
			v.Choices = append(v.Choices, ChoiceView{
				Index:     i,
				Text:      opt.Text,
				Available: opt.Available(r.ctx),
			})
		}
	}
	return v
}

func (r *Runtime) enterLocked(node narrative.Node) error {
	id := node.Identity().ID
	r.current = node
	r.history = append(r.history, Step{NodeID: id, Kind: node.Kind(), Choice: narrative.NoIndex})
	r.emitEvent("info", "node.entered", map[string]interface{}{"node_id": id, "kind": string(node.Kind())})

	if an, ok := node.(*narrative.ActionNode); ok {
		if err := an.OnExecute(r.ctx); err != nil {
			r.failLocked(id, err)
			return err
		}
		r.emitEvent("info", "action.executed", map[string]interface{}{"node_id": id, "actions": len(an.Actions)})
	}
	return nil
}

func (r *Runtime) failLocked(nodeID string, err error) {
	r.state = StateFailed
	r.emitMessage("error", "node.failed", err.Error(), map[string]interface{}{"node_id": nodeID, "error": err.Error()})
}

func (r *Runtime) resetLocked() {
	r.state = StateIdle
	r.current = nil
	r.history = nil
	r.local = r.newLocal()
	r.ctx = narrative.NewGameContext(variables.NewContext(r.local, r.global), r.services)
	if inv, ok := r.inventory(); ok {
		inv.Clear()
	}
}

// inventory returns the in-memory inventory service when one is registered.
func (r *Runtime) inventory() (*inventory.Memory, bool) {
	inv, err := services.GetService[*inventory.Memory](r.services, inventory.ServiceName)
	return inv, err == nil
}

func (r *Runtime) emitEvent(level, name string, fields map[string]interface{}) {
	r.emitMessage(level, name, "", fields)
}

func (r *Runtime) emitMessage(level, name, msg string, fields map[string]interface{}) {
	fields["session_id"] = r.sessionID
	fields["story_id"] = r.story.ID
	if _, err := events.Emit(level, name, msg, fields); err != nil {
		r.log.Error("failed to emit event", zap.String("event", name), zap.Error(err))
	}
}
