// Package postgres stores session saves and the event journal in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/NarrativeEngine/internal/config"
	"github.com/AaronLay10/NarrativeEngine/internal/storage"
)

func init() {
	storage.Register("postgres", func(cfg config.StorageConfig) (storage.SaveStore, error) {
		return New(cfg.DSN)
	})
}

// EventRow is one journaled event.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Source    string                 `json:"source"`
}

// Client is a SaveStore and an event journal over one connection pool.
type Client struct {
	db *sql.DB
}

// New connects to dsn, e.g. "postgres://narrative@127.0.0.1/narrative?sslmode=disable",
// and creates the tables if needed.
func New(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}
	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return client, nil
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS saves (
			session_id TEXT PRIMARY KEY,
			story_id   TEXT NOT NULL,
			snapshot   JSONB NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS events (
			event_id BIGSERIAL PRIMARY KEY,
			ts       TIMESTAMPTZ NOT NULL,
			level    TEXT NOT NULL,
			event    TEXT NOT NULL,
			msg      TEXT,
			fields   JSONB,
			source   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
	`
	_, err := c.db.Exec(query)
	return err
}

func (c *Client) Put(ctx context.Context, save storage.Save) error {
	if save.SessionID == "" {
		return storage.ErrEmptySession
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO saves (session_id, story_id, snapshot, saved_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET story_id = EXCLUDED.story_id, snapshot = EXCLUDED.snapshot, saved_at = EXCLUDED.saved_at
	`
	if _, err := c.db.ExecContext(ctx, query, save.SessionID, save.StoryID, string(save.Snapshot), save.SavedAt); err != nil {
		return fmt.Errorf("put save: %w", err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, sessionID string) (storage.Save, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT session_id, story_id, snapshot, saved_at FROM saves WHERE session_id = $1`, sessionID)

	var save storage.Save
	if err := row.Scan(&save.SessionID, &save.StoryID, &save.Snapshot, &save.SavedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Save{}, fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
		}
		return storage.Save{}, fmt.Errorf("get save: %w", err)
	}
	return save, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM saves WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", storage.ErrSaveNotFound, sessionID)
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]storage.Save, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_id, story_id, snapshot, saved_at FROM saves ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var saves []storage.Save
	for rows.Next() {
		var save storage.Save
		if err := rows.Scan(&save.SessionID, &save.StoryID, &save.Snapshot, &save.SavedAt); err != nil {
			return nil, err
		}
		saves = append(saves, save)
	}
	return saves, rows.Err()
}

// Append journals an event. It satisfies events.Sink.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, source string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, nullableJSON(fieldsJSON), source)
	return err
}

// Query returns the last limit events of source, newest first.
func (c *Client) Query(source string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, source
		FROM events
		WHERE source = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.Source); err != nil {
			return nil, err
		}
		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
