// Package sqlite stores session saves and the event journal in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
)

func init() {
	storage.Register("sqlite", func(cfg config.StorageConfig) (storage.SaveStore, error) {
		return Open(cfg.DSN)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS saves (
	session_id TEXT PRIMARY KEY,
	story_id   TEXT NOT NULL,
	snapshot   BLOB NOT NULL,
	saved_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts       INTEGER NOT NULL,
	level    TEXT NOT NULL,
	event    TEXT NOT NULL,
	msg      TEXT,
	fields   TEXT,
	source   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_source ON events(source, ts);
`

// Store is a SaveStore and an event journal backed by SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens path, or an in-memory database for ":memory:", and creates the
// schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Put(ctx context.Context, save storage.Save) error {
	if strings.TrimSpace(save.SessionID) == "" {
		return storage.ErrEmptySession
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO saves (session_id, story_id, snapshot, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			story_id = excluded.story_id,
			snapshot = excluded.snapshot,
			saved_at = excluded.saved_at`,
		save.SessionID, save.StoryID, save.Snapshot, save.SavedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put save: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (storage.Save, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT session_id, story_id, snapshot, saved_at FROM saves WHERE session_id = ?`, sessionID)
	save, err := scanSave(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Save{}, fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
		}
		return storage.Save{}, fmt.Errorf("get save: %w", err)
	}
	return save, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM saves WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]storage.Save, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT session_id, story_id, snapshot, saved_at FROM saves ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var saves []storage.Save
	for rows.Next() {
		save, err := scanSave(rows)
		if err != nil {
			return nil, fmt.Errorf("list saves: %w", err)
		}
		saves = append(saves, save)
	}
	return saves, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSave(row scanner) (storage.Save, error) {
	var save storage.Save
	var savedAt int64
	if err := row.Scan(&save.SessionID, &save.StoryID, &save.Snapshot, &savedAt); err != nil {
		return storage.Save{}, err
	}
	save.SavedAt = time.UnixMilli(savedAt).UTC()
	return save, nil
}

// Append journals an event. It satisfies events.Sink.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, source string) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	var msgValue sql.NullString
	if msg != "" {
		msgValue = sql.NullString{String: msg, Valid: true}
	}
	_, err := s.sqlDB.Exec(
		`INSERT INTO events (ts, level, event, msg, fields, source) VALUES (?, ?, ?, ?, ?, ?)`,
		ts.UnixMilli(), level, event, msgValue, fieldsJSON, source,
	)
	return err
}

// JournalEntry is one journaled event.
type JournalEntry struct {
	Timestamp time.Time
	Level     string
	Event     string
	Message   string
	Fields    map[string]interface{}
}

// Journal returns the last limit events of source, oldest first.
func (s *Store) Journal(ctx context.Context, source string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT ts, level, event, msg, fields FROM (
			SELECT event_id, ts, level, event, msg, fields FROM events
			WHERE source = ? ORDER BY event_id DESC LIMIT ?
		 ) ORDER BY event_id ASC`,
		source, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var ts int64
		var msg, fields sql.NullString
		if err := rows.Scan(&ts, &e.Level, &e.Event, &msg, &fields); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Message = msg.String
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
