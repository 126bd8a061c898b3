package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

var (
	ErrStoryMismatch   = errors.New("snapshot belongs to another story")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Version   int             `json:"version"`
	StoryID   string          `json:"storyId"`
	SessionID string          `json:"sessionId"`
	State     State           `json:"state"`
	Current   string          `json:"current,omitempty"`
	History   []Step          `json:"history"`
	Local     json.RawMessage `json:"local"`
	Global    json.RawMessage `json:"global"`
	Inventory map[string]int  `json:"inventory,omitempty"`
}

// Snapshot captures the session.
func (r *Runtime) Snapshot() (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	local, err := r.local.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode local variables: %w", err)
	}
	global, err := r.global.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode global variables: %w", err)
	}

	snap := &Snapshot{
		Version:   SnapshotVersion,
		StoryID:   r.story.ID,
		SessionID: r.sessionID,
		State:     r.state,
		History:   append([]Step{}, r.history...),
		Local:     local,
		Global:    global,
	}
	if r.current != nil {
		snap.Current = r.current.Identity().ID
	}
	if inv, ok := r.inventory(); ok {
		snap.Inventory = inv.Holdings()
	}
	return snap, nil
}

// Restore replaces the session with snap. Actions of the current node are
// not run again. Nothing changes when snap is rejected.
func (r *Runtime) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d", ErrInvalidSnapshot, snap.Version)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.StoryID != r.story.ID {
		return fmt.Errorf("%w: %q, running %q", ErrStoryMismatch, snap.StoryID, r.story.ID)
	}

	var current narrative.Node
	switch snap.State {
	case StateIdle:
	case StateActive, StateFinished, StateFailed:
		node, err := r.story.Graph.Node(narrative.NodeRef(snap.Current))
		if err != nil {
			return fmt.Errorf("%w: current: %w", ErrInvalidSnapshot, err)
		}
		current = node
	default:
		return fmt.Errorf("%w: state %q", ErrInvalidSnapshot, snap.State)
	}
	for i, step := range snap.History {
		if _, err := r.story.Graph.Node(narrative.NodeRef(step.NodeID)); err != nil {
			return fmt.Errorf("%w: history[%d]: %w", ErrInvalidSnapshot, i, err)
		}
	}

	local := variables.NewStore("local")
	if err := decodeStore(local, snap.Local); err != nil {
		return fmt.Errorf("%w: local: %w", ErrInvalidSnapshot, err)
	}
	global := variables.NewStore("global")
	if err := decodeStore(global, snap.Global); err != nil {
		return fmt.Errorf("%w: global: %w", ErrInvalidSnapshot, err)
	}

	if inv, ok := r.inventory(); ok {
		if err := inv.Restore(snap.Inventory); err != nil {
			return fmt.Errorf("%w: inventory: %w", ErrInvalidSnapshot, err)
		}
	}

	r.local.Replace(local)
	r.global.Replace(global)
	r.state = snap.State
	r.current = current
	r.history = append([]Step{}, snap.History...)

	r.emitEvent("info", "session.restored", map[string]interface{}{
		"current": snap.Current,
		"state":   string(snap.State),
		"steps":   len(snap.History),
	})
	return nil
}

func decodeStore(s *variables.Store, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	return s.UnmarshalJSON(raw)
}

// MarshalSnapshot encodes the session as JSON.
func (r *Runtime) MarshalSnapshot() ([]byte, error) {
	snap, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// RestoreJSON decodes data produced by MarshalSnapshot and restores it.
func (r *Runtime) RestoreJSON(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return r.Restore(&snap)
}

// SaveTo writes the session to store under the session id.
func (r *Runtime) SaveTo(ctx context.Context, store storage.SaveStore) error {
	data, err := r.MarshalSnapshot()
	if err != nil {
		return err
	}
	save := storage.Save{
		SessionID: r.sessionID,
		StoryID:   r.story.ID,
		Snapshot:  data,
		SavedAt:   time.Now().UTC(),
	}
	if err := store.Put(ctx, save); err != nil {
		r.log.Error("save failed", zap.Error(err))
		return err
	}

	r.mu.Lock()
	r.emitEvent("info", "session.saved", map[string]interface{}{"bytes": len(data)})
	r.mu.Unlock()
	return nil
}

// LoadFrom restores the session saved under the session id.
func (r *Runtime) LoadFrom(ctx context.Context, store storage.SaveStore) error {
	save, err := store.Get(ctx, r.sessionID)
	if err != nil {
		return err
	}
	if save.StoryID != r.story.ID {
		return fmt.Errorf("%w: %q, running %q", ErrStoryMismatch, save.StoryID, r.story.ID)
	}
	return r.RestoreJSON(save.Snapshot)
}

// DeleteFrom removes the save of the session from store.
func (r *Runtime) DeleteFrom(ctx context.Context, store storage.SaveStore) error {
	if err := store.Delete(ctx, r.sessionID); err != nil {
		return err
	}
	r.mu.Lock()
	r.emitEvent("info", "session.deleted", map[string]interface{}{})
	r.mu.Unlock()
	return nil
}
