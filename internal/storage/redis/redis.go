// Package redis stores session saves as Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
)

func init() {
	storage.Register("redis", func(cfg config.StorageConfig) (storage.SaveStore, error) {
		return New(context.Background(), cfg.DSN, cfg.KeyPrefix)
	})
}

// Store keeps each save in the hash <prefix><session id> and the session ids
// in the set <prefix>index.
type Store struct {
	client *goredis.Client
	prefix string
}

// New connects to url, e.g. "redis://localhost:6379/0".
func New(ctx context.Context, url, prefix string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string { return s.prefix + sessionID }
func (s *Store) indexKey() string            { return s.prefix + "index" }

func (s *Store) Put(ctx context.Context, save storage.Save) error {
	if save.SessionID == "" {
		return storage.ErrEmptySession
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(save.SessionID),
		"story_id", save.StoryID,
		"snapshot", save.Snapshot,
		"saved_at", save.SavedAt.UnixMilli(),
	)
	pipe.SAdd(ctx, s.indexKey(), save.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put save: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (storage.Save, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return storage.Save{}, fmt.Errorf("get save: %w", err)
	}
	if len(fields) == 0 {
		return storage.Save{}, fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
	}
	savedAt, err := strconv.ParseInt(fields["saved_at"], 10, 64)
	if err != nil {
		return storage.Save{}, fmt.Errorf("corrupted save %q: saved_at: %w", sessionID, err)
	}
	return storage.Save{
		SessionID: sessionID,
		StoryID:   fields["story_id"],
		Snapshot:  []byte(fields["snapshot"]),
		SavedAt:   time.UnixMilli(savedAt).UTC(),
	}, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.TxPipeline()
	delCmd := pipe.Del(ctx, s.key(sessionID))
	pipe.SRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	if delCmd.Val() == 0 {
		return fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]storage.Save, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	sort.Strings(ids)

	saves := make([]storage.Save, 0, len(ids))
	for _, id := range ids {
		save, err := s.Get(ctx, id)
		if errors.Is(err, storage.ErrSaveNotFound) {
			// expired or deleted out of band
			continue
		}
		if err != nil {
			return nil, err
		}
		saves = append(saves, save)
	}
	return saves, nil
}

func (s *Store) Close() error { return s.client.Close() }
