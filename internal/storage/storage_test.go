package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
	"github.com/AaronLay10/NarrativeEngine/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, storage.NewMemory())
}

func TestMemoryCopiesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	snap := []byte(`{"a":1}`)
	require.NoError(t, store.Put(ctx, storage.Save{SessionID: "s", Snapshot: snap}))
	snap[2] = 'b'

	got, err := store.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got.Snapshot))
}

func TestOpen(t *testing.T) {
	store, err := storage.Open(config.StorageConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, store)

	_, err = storage.Open(config.StorageConfig{Driver: "etcd"})
	assert.ErrorIs(t, err, storage.ErrUnknownDriver)

	assert.Contains(t, storage.Drivers(), "memory")
}
