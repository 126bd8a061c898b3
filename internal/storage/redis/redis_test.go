package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/NarrativeEngine/internal/storage/storagetest"
)

// Set NARRATIVE_TEST_REDIS_URL to run these against a live server.
func TestSaveStoreContract(t *testing.T) {
	url := os.Getenv("NARRATIVE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NARRATIVE_TEST_REDIS_URL not set")
	}
	prefix := fmt.Sprintf("narrative:test:%d:", time.Now().UnixNano())
	store, err := New(context.Background(), url, prefix)
	require.NoError(t, err)
	defer store.Close()

	storagetest.Run(t, store)
}

func TestBadURL(t *testing.T) {
	_, err := New(context.Background(), "not a url", "p:")
	require.Error(t, err)
}
