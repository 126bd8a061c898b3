package narrative

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeKind is the persisted discriminator of a node variant.
type NodeKind string

const (
	KindLinear NodeKind = "Linear"
	KindChoice NodeKind = "Choice"
	KindAction NodeKind = "Action"
)

// NodeRef points at a node by its human id. None ends the story.
type NodeRef string

const None NodeRef = ""

// NoIndex is passed to FetchNextNode when no choice was made.
const NoIndex = -1

// Header identifies a node. GUID is unique per node instance; ID is the
// authored name other nodes refer to.
type Header struct {
	GUID uuid.UUID
	ID   string `doc:"id"`
}

func (h Header) Identity() Header { return h }

// Node is one step of a story graph.
type Node interface {
	Kind() NodeKind
	Identity() Header
	Text() string
	// FetchNextNode resolves the successor. Choice nodes require index.
	FetchNextNode(index int) (NodeRef, error)
	node()
}

// NewHeader returns a header with a fresh GUID.
func NewHeader(id string) Header {
	return Header{GUID: uuid.New(), ID: id}
}

// Linear shows text and moves on.
type Linear struct {
	Header  `doc:",squash"`
	Content string  `doc:"text"`
	Next    NodeRef `doc:"nextNode"`
}

func (*Linear) Kind() NodeKind { return KindLinear }
func (*Linear) node()          {}
func (n *Linear) Text() string { return n.Content }

func (n *Linear) FetchNextNode(int) (NodeRef, error) { return n.Next, nil }

// ChoiceOption is one selectable branch of a Choice node.
type ChoiceOption struct {
	Text       string  `doc:"text"`
	Next       NodeRef `doc:"nextNode"`
	Conditions []Condition
}

// Available reports whether every condition holds.
func (o ChoiceOption) Available(ctx Context) bool {
	return AllFulfilled(o.Conditions, ctx)
}

// Choice prompts the player to pick one of its options.
type Choice struct {
	Header  `doc:",squash"`
	Prompt  string `doc:"text"`
	Choices []ChoiceOption
}

func (*Choice) Kind() NodeKind     { return KindChoice }
func (*Choice) node()              {}
func (n *Choice) Text() string     { return n.Prompt }
func (n *Choice) ChoiceCount() int { return len(n.Choices) }

// Choice returns the option at index.
func (n *Choice) Choice(index int) (ChoiceOption, error) {
	if index < 0 {
		return ChoiceOption{}, fmt.Errorf("%w: node %q", ErrIndexRequired, n.ID)
	}
	if index >= len(n.Choices) {
		return ChoiceOption{}, fmt.Errorf("%w: node %q has %d choices, got %d",
			ErrIndexOutOfRange, n.ID, len(n.Choices), index)
	}
	return n.Choices[index], nil
}

func (n *Choice) FetchNextNode(index int) (NodeRef, error) {
	opt, err := n.Choice(index)
	if err != nil {
		return None, err
	}
	return opt.Next, nil
}

// IsChoiceAvailable reports whether the option at index exists and all of its
// conditions hold.
func (n *Choice) IsChoiceAvailable(index int, ctx Context) bool {
	opt, err := n.Choice(index)
	if err != nil {
		return false
	}
	return opt.Available(ctx)
}

// AvailableChoices returns the indices of the options that can be picked.
func (n *Choice) AvailableChoices(ctx Context) []int {
	out := make([]int, 0, len(n.Choices))
	for i, opt := range n.Choices {
		if opt.Available(ctx) {
			out = append(out, i)
		}
	}
	return out
}

// ActionNode shows text, runs its actions and moves on.
type ActionNode struct {
	Header  `doc:",squash"`
	Content string `doc:"text"`
	Actions []Action
	Next    NodeRef `doc:"nextNode"`
}

func (*ActionNode) Kind() NodeKind { return KindAction }
func (*ActionNode) node()          {}
func (n *ActionNode) Text() string { return n.Content }

func (n *ActionNode) FetchNextNode(int) (NodeRef, error) { return n.Next, nil }

// OnExecute runs the actions in order and stops at the first failure.
func (n *ActionNode) OnExecute(ctx Context) error {
	for i, a := range n.Actions {
		if a == nil {
			return fmt.Errorf("node %q action %d: nil action", n.ID, i)
		}
		if err := a.Execute(ctx); err != nil {
			return fmt.Errorf("node %q action %d: %w", n.ID, i, err)
		}
	}
	return nil
}

// Successors lists every reference n can move to, terminal ones excluded.
func Successors(n Node) []NodeRef {
	var refs []NodeRef
	add := func(r NodeRef) {
		if r != None {
			refs = append(refs, r)
		}
	}
	switch t := n.(type) {
	case *Linear:
		add(t.Next)
	case *ActionNode:
		add(t.Next)
	case *Choice:
		for _, opt := range t.Choices {
			add(opt.Next)
		}
	}
	return refs
}
