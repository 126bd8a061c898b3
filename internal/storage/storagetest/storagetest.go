// Package storagetest checks SaveStore implementations against the shared
// contract.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/storage"
)

// Run exercises store. It expects store to start empty.
func Run(t *testing.T, store storage.SaveStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrSaveNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "nobody"), storage.ErrSaveNotFound)
	})

	t.Run("empty session id", func(t *testing.T) {
		assert.ErrorIs(t, store.Put(ctx, storage.Save{StoryID: "s"}), storage.ErrEmptySession)
	})

	t.Run("put get overwrite", func(t *testing.T) {
		savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Put(ctx, storage.Save{
			SessionID: "alpha",
			StoryID:   "hollow-vale",
			Snapshot:  []byte(`{"current":"gate"}`),
			SavedAt:   savedAt,
		}))

		got, err := store.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "hollow-vale", got.StoryID)
		assert.JSONEq(t, `{"current":"gate"}`, string(got.Snapshot))
		assert.True(t, savedAt.Equal(got.SavedAt), "saved at %v", got.SavedAt)

		require.NoError(t, store.Put(ctx, storage.Save{
			SessionID: "alpha",
			StoryID:   "hollow-vale",
			Snapshot:  []byte(`{"current":"reward"}`),
		}))
		got, err = store.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.JSONEq(t, `{"current":"reward"}`, string(got.Snapshot))
		assert.False(t, got.SavedAt.IsZero())
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, storage.Save{SessionID: "beta", StoryID: "s", Snapshot: []byte(`{}`)}))

		saves, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, saves, 2)
		assert.Equal(t, "alpha", saves[0].SessionID)
		assert.Equal(t, "beta", saves[1].SessionID)

		require.NoError(t, store.Delete(ctx, "alpha"))
		_, err = store.Get(ctx, "alpha")
		assert.ErrorIs(t, err, storage.ErrSaveNotFound)

		saves, err = store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, saves, 1)
	})
}
