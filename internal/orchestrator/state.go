package orchestrator

import "github.com/AaronLay10/NarrativeEngine/internal/narrative"

// State represents the lifecycle state of a story session.
type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Step is one entry of the traversal history. Choice is the selected index
// for Choice nodes, NoIndex otherwise.
type Step struct {
	NodeID string             `json:"nodeId"`
	Kind   narrative.NodeKind `json:"kind"`
	Choice int                `json:"choice"`
}

// ChoiceView describes one option of the current Choice node.
type ChoiceView struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Available bool   `json:"available"`
}

// View is the presentation of the current position in the story.
type View struct {
	State   State              `json:"state"`
	NodeID  string             `json:"nodeId,omitempty"`
	Kind    narrative.NodeKind `json:"kind,omitempty"`
	Text    string             `json:"text,omitempty"`
	Choices []ChoiceView       `json:"choices,omitempty"`
}
