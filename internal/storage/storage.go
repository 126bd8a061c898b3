// Package storage persists session saves. Backends register themselves by
// driver name; import them for their side effect:
//
//	import _ "github.com/AaronLay10/NarrativeEngine/internal/storage/sqlite"
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
)

var (
	ErrSaveNotFound  = errors.New("save not found")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrEmptySession  = errors.New("session id is required")
)

// Save is one persisted session snapshot.
type Save struct {
	SessionID string    `json:"sessionId"`
	StoryID   string    `json:"storyId"`
	Snapshot  []byte    `json:"snapshot"`
	SavedAt   time.Time `json:"savedAt"`
}

// SaveStore keeps at most one save per session id.
type SaveStore interface {
	Put(ctx context.Context, save Save) error
	Get(ctx context.Context, sessionID string) (Save, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]Save, error)
	Close() error
}

// OpenFunc opens a backend from its configuration.
type OpenFunc func(cfg config.StorageConfig) (SaveStore, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]OpenFunc{
		"memory": func(config.StorageConfig) (SaveStore, error) { return NewMemory(), nil },
	}
)

// Register makes a backend available under driver. It panics if driver is
// registered twice.
func Register(driver string, open OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[driver]; dup {
		panic("storage: driver registered twice: " + driver)
	}
	drivers[driver] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend named by cfg.Driver.
func Open(cfg config.StorageConfig) (SaveStore, error) {
	driversMu.RLock()
	open, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (forgotten import?)", ErrUnknownDriver, cfg.Driver)
	}
	return open(cfg)
}

// Memory is a process-local SaveStore.
type Memory struct {
	mu    sync.RWMutex
	saves map[string]Save
}

func NewMemory() *Memory {
	return &Memory{saves: make(map[string]Save)}
}

func (m *Memory) Put(_ context.Context, save Save) error {
	if save.SessionID == "" {
		return ErrEmptySession
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}
	save.Snapshot = append([]byte{}, save.Snapshot...)
	m.mu.Lock()
	m.saves[save.SessionID] = save
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, sessionID string) (Save, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	save, ok := m.saves[sessionID]
	if !ok {
		return Save{}, fmt.Errorf("%w: %q", ErrSaveNotFound, sessionID)
	}
	save.Snapshot = append([]byte{}, save.Snapshot...)
	return save, nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saves[sessionID]; !ok {
		return fmt.Errorf("%w: %q", ErrSaveNotFound, sessionID)
	}
	delete(m.saves, sessionID)
	return nil
}

// List returns every save ordered by session id.
func (m *Memory) List(_ context.Context) ([]Save, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Save, 0, len(m.saves))
	for _, save := range m.saves {
		out = append(out, save)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *Memory) Close() error { return nil }
