package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/codec"
	"github.com/AaronLay10/NarrativeEngine/internal/events"
	"github.com/AaronLay10/NarrativeEngine/internal/inventory"
	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/variables"
)

func loadVale(t *testing.T) *Story {
	t.Helper()
	story, err := LoadStory("testdata/hollow_vale.yaml")
	require.NoError(t, err)
	return story
}

func eventNames() []string {
	var names []string
	for _, e := range events.Snapshot() {
		names = append(names, e.Name)
	}
	return names
}

func giveKey(t *testing.T, r *Runtime) {
	t.Helper()
	inv, ok := r.inventory()
	require.True(t, ok)
	require.NoError(t, inv.AddItem("rusty_key", 1))
}

func TestLoadStory(t *testing.T) {
	story := loadVale(t)
	assert.Equal(t, "hollow-vale", story.ID)
	assert.Equal(t, "The Hollow Vale", story.Title)
	assert.Equal(t, narrative.NodeRef("gate"), story.Entry)
	assert.Equal(t, 4, story.Graph.Len())
	require.Len(t, story.Local, 2)
	assert.Equal(t, 2, story.Local[0].Value)
	require.Len(t, story.Global, 1)
	_, ok := story.Catalog.Item("coin")
	assert.True(t, ok)
	assert.NoError(t, story.Graph.Validate())
}

func TestLoadBareNodeArray(t *testing.T) {
	story, err := LoadStory("testdata/chain.json")
	require.NoError(t, err)
	assert.Equal(t, "chain", story.ID)
	assert.Equal(t, narrative.None, story.Entry)
	assert.Empty(t, story.Catalog.Items())

	graph, err := LoadGraph("testdata/chain.json")
	require.NoError(t, err)
	assert.Equal(t, 3, graph.Len())
}

func TestLoadStoryFailures(t *testing.T) {
	_, err := LoadStory("testdata/missing.json")
	assert.Error(t, err)

	_, err = LoadStory("runtime.go")
	assert.ErrorContains(t, err, "unsupported file extension")
}

func TestDecodeStoryRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"version":     `{"version": 2, "nodes": []}`,
		"no nodes":    `{"version": 1}`,
		"entry":       `{"version": 1, "entry": "nowhere", "nodes": [{"type": "Linear", "id": "a", "text": "", "nextNode": ""}]}`,
		"nodes type":  `{"version": 1, "nodes": {"type": "Linear"}}`,
		"bad locals":  `{"version": 1, "variables": {"local": [{"name": "x", "type": "Int"}]}, "nodes": []}`,
		"duplicate":   `[{"type": "Linear", "id": "a", "text": "", "nextNode": ""}, {"type": "Linear", "id": "a", "text": "", "nextNode": ""}]`,
		"bad catalog": `{"version": 1, "items": [{"name": "no id"}], "nodes": []}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := codec.Parse([]byte(src))
			require.NoError(t, err)
			_, err = DecodeStory(nil, doc)
			assert.Error(t, err)
		})
	}
}

func TestTraverseLinearChain(t *testing.T) {
	events.Clear()
	story, err := LoadStory("testdata/chain.json")
	require.NoError(t, err)
	r := NewRuntime(story)

	require.NoError(t, r.Start(narrative.None))
	node, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "start", node.Identity().ID)
	assert.Equal(t, StateActive, r.State())

	node, err = r.Advance(narrative.NoIndex)
	require.NoError(t, err)
	assert.Equal(t, "middle", node.Identity().ID)

	_, err = r.Advance(narrative.NoIndex)
	require.NoError(t, err)
	node, err = r.Advance(narrative.NoIndex)
	require.NoError(t, err)
	assert.Nil(t, node)
	assert.Equal(t, StateFinished, r.State())

	ids := []string{}
	for _, step := range r.History() {
		ids = append(ids, step.NodeID)
	}
	assert.Equal(t, []string{"start", "middle", "end"}, ids)

	_, err = r.Advance(narrative.NoIndex)
	assert.ErrorIs(t, err, ErrNotActive)

	assert.Equal(t, []string{
		"story.started", "node.entered", "node.entered", "node.entered", "story.finished",
	}, eventNames())
}

func TestChoiceRequiresAvailableOption(t *testing.T) {
	r := NewRuntime(loadVale(t))
	require.NoError(t, r.Start(narrative.None))
	_, err := r.Advance(narrative.NoIndex)
	require.NoError(t, err)

	_, err = r.Advance(narrative.NoIndex)
	assert.ErrorIs(t, err, narrative.ErrIndexRequired)
	_, err = r.Advance(7)
	assert.ErrorIs(t, err, narrative.ErrIndexOutOfRange)

	events.Clear()
	_, err = r.Advance(0)
	assert.ErrorIs(t, err, ErrChoiceUnavailable)
	_, err = r.Advance(1)
	assert.ErrorIs(t, err, ErrChoiceUnavailable)
	assert.Equal(t, []string{"choice.unavailable", "choice.unavailable"}, eventNames())

	node, _ := r.Current()
	assert.Equal(t, "choose", node.Identity().ID)
	assert.Equal(t, StateActive, r.State())

	view := r.View()
	require.Len(t, view.Choices, 3)
	assert.False(t, view.Choices[0].Available)
	assert.False(t, view.Choices[1].Available)
	assert.True(t, view.Choices[2].Available)
	assert.Equal(t, "What do you do?", view.Text)
}

func TestActionNodeRunsOnEntry(t *testing.T) {
	r := NewRuntime(loadVale(t))
	require.NoError(t, r.Start("choose"))
	giveKey(t, r)

	events.Clear()
	node, err := r.Advance(0)
	require.NoError(t, err)
	assert.Equal(t, "reward", node.Identity().ID)
	assert.Equal(t, []string{"choice.selected", "node.entered", "action.executed"}, eventNames())

	passed, err := variables.GetGlobal[bool](r.Variables(), "passed_gate")
	require.NoError(t, err)
	assert.True(t, passed)

	inv, _ := r.inventory()
	assert.Equal(t, 5, inv.Amount("coin"))

	history := r.History()
	require.Len(t, history, 2)
	assert.Equal(t, 0, history[0].Choice)
	assert.Equal(t, narrative.NoIndex, history[1].Choice)
}

func TestStatsUnlockChoice(t *testing.T) {
	r := NewRuntime(loadVale(t))
	require.NoError(t, r.Start("choose"))
	require.NoError(t, variables.SetLocal(r.Variables(), "strength", 3))

	node, err := r.Advance(1)
	require.NoError(t, err)
	assert.Equal(t, "reward", node.Identity().ID)
}

func TestTurnBackFinishes(t *testing.T) {
	r := NewRuntime(loadVale(t))
	require.NoError(t, r.Start("choose"))
	node, err := r.Advance(2)
	require.NoError(t, err)
	assert.Nil(t, node)
	assert.Equal(t, StateFinished, r.State())
}

func TestFailures(t *testing.T) {
	story, err := LoadStory("testdata/broken.json")
	require.NoError(t, err)

	t.Run("dangling reference", func(t *testing.T) {
		r := NewRuntime(story)
		require.NoError(t, r.Start(narrative.None))
		_, err := r.Advance(narrative.NoIndex)
		assert.ErrorIs(t, err, narrative.ErrNodeNotFound)
		assert.Equal(t, StateFailed, r.State())
	})

	t.Run("action error", func(t *testing.T) {
		events.Clear()
		r := NewRuntime(story)
		err := r.Start("spend")
		assert.ErrorIs(t, err, inventory.ErrItemNotHeld)
		assert.Equal(t, StateFailed, r.State())
		assert.Contains(t, eventNames(), "node.failed")
		for _, e := range events.Snapshot() {
			if e.Name == "node.failed" {
				assert.Equal(t, err.Error(), e.Message)
			}
		}

		// a failed session can be started again
		require.NoError(t, r.Start("start"))
		assert.Equal(t, StateActive, r.State())
	})

	t.Run("unknown entry", func(t *testing.T) {
		r := NewRuntime(story)
		assert.ErrorIs(t, r.Start("nowhere"), narrative.ErrNodeNotFound)
		assert.Equal(t, StateIdle, r.State())
	})
}

func TestVariablesDuringRestart(t *testing.T) {
	r := NewRuntime(loadVale(t))
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if r.Start("choose") == nil {
				_ = r.Stop()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.True(t, r.Variables().HasVariable("strength"))
			assert.NotNil(t, r.Context())
		}
	}()
	wg.Wait()
}

func TestStartWhileActive(t *testing.T) {
	r := NewRuntime(loadVale(t))
	require.NoError(t, r.Start(narrative.None))
	assert.ErrorIs(t, r.Start(narrative.None), ErrAlreadyActive)
}

func TestStopResetsSession(t *testing.T) {
	r := NewRuntime(loadVale(t))
	assert.ErrorIs(t, r.Stop(), ErrNotActive)

	require.NoError(t, r.Start("choose"))
	require.NoError(t, variables.SetLocal(r.Variables(), "strength", 9))
	giveKey(t, r)
	require.NoError(t, r.Stop())

	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.History())
	_, ok := r.Current()
	assert.False(t, ok)

	strength, err := variables.GetLocal[int](r.Variables(), "strength")
	require.NoError(t, err)
	assert.Equal(t, 2, strength)
	inv, _ := r.inventory()
	assert.False(t, inv.HasItem("rusty_key"))
}

func TestGlobalStoreSurvivesRestart(t *testing.T) {
	global := variables.NewStore("global")
	r := NewRuntime(loadVale(t), WithGlobal(global), WithSessionID("player-1"))
	require.NoError(t, r.Start("reward"))
	require.NoError(t, r.Stop())
	require.NoError(t, r.Start(narrative.None))

	passed, err := variables.GetGlobal[bool](r.Variables(), "passed_gate")
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Same(t, global, r.Variables().Global())
	assert.Equal(t, "player-1", r.SessionID())
}

func TestSnapshotRestore(t *testing.T) {
	story := loadVale(t)
	r := NewRuntime(story, WithSessionID("alpha"))
	require.NoError(t, r.Start("choose"))
	giveKey(t, r)
	_, err := r.Advance(0)
	require.NoError(t, err)

	data, err := r.MarshalSnapshot()
	require.NoError(t, err)

	other := NewRuntime(story, WithSessionID("alpha"))
	events.Clear()
	require.NoError(t, other.RestoreJSON(data))
	assert.Equal(t, []string{"session.restored"}, eventNames())

	node, ok := other.Current()
	require.True(t, ok)
	assert.Equal(t, "reward", node.Identity().ID)
	assert.Equal(t, r.History(), other.History())
	assert.Equal(t, StateActive, other.State())

	// actions are not run again
	inv, _ := other.inventory()
	assert.Equal(t, 5, inv.Amount("coin"))
	assert.True(t, inv.HasItem("rusty_key"))

	passed, err := variables.GetGlobal[bool](other.Variables(), "passed_gate")
	require.NoError(t, err)
	assert.True(t, passed)

	next, err := other.Advance(narrative.NoIndex)
	require.NoError(t, err)
	assert.Equal(t, "ending", next.Identity().ID)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	story := loadVale(t)
	r := NewRuntime(story)
	require.NoError(t, r.Start("gate"))
	good, err := r.Snapshot()
	require.NoError(t, err)

	cases := map[string]func(s *Snapshot){
		"version": func(s *Snapshot) { s.Version = 9 },
		"story":   func(s *Snapshot) { s.StoryID = "other" },
		"current": func(s *Snapshot) { s.Current = "nowhere" },
		"state":   func(s *Snapshot) { s.State = "paused" },
		"history": func(s *Snapshot) { s.History = []Step{{NodeID: "nowhere"}} },
		"local":   func(s *Snapshot) { s.Local = []byte(`{"variables": [{"name": "x"}]}`) },
		"items":   func(s *Snapshot) { s.Inventory = map[string]int{"sword": 1} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			target := NewRuntime(story)
			require.NoError(t, target.Start("choose"))

			snap := *good
			mutate(&snap)
			assert.Error(t, target.Restore(&snap))

			node, _ := target.Current()
			assert.Equal(t, "choose", node.Identity().ID)
		})
	}

	assert.ErrorIs(t, r.Restore(nil), ErrInvalidSnapshot)
	assert.ErrorIs(t, r.RestoreJSON([]byte("{")), ErrInvalidSnapshot)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	story := loadVale(t)

	r := NewRuntime(story, WithSessionID("beta"))
	require.NoError(t, r.Start("choose"))
	require.NoError(t, r.SaveTo(ctx, store))

	save, err := store.Get(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, "hollow-vale", save.StoryID)

	restored := NewRuntime(story, WithSessionID("beta"))
	require.NoError(t, restored.LoadFrom(ctx, store))
	assert.Equal(t, "choose", restored.View().NodeID)

	stranger := NewRuntime(story, WithSessionID("gamma"))
	assert.ErrorIs(t, stranger.LoadFrom(ctx, store), storage.ErrSaveNotFound)

	require.NoError(t, r.DeleteFrom(ctx, store))
	assert.ErrorIs(t, restored.LoadFrom(ctx, store), storage.ErrSaveNotFound)
}

func TestAddCatalog(t *testing.T) {
	story, err := LoadStory("testdata/chain.json")
	require.NoError(t, err)

	require.NoError(t, story.AddCatalog("testdata/extra_items.json"))
	_, ok := story.Catalog.Item("lantern")
	assert.True(t, ok)

	assert.ErrorContains(t, story.AddCatalog("testdata/extra_items.json"), "duplicate item")
	assert.Error(t, story.AddCatalog("testdata/missing.json"))
}
