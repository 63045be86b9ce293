// Package storage implements the engine's persistence boundary: atomic
// snapshot load/replace of the full engine state, plus a JSONL event log.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/flowdeck/flowdeck/internal/automation"
	"github.com/flowdeck/flowdeck/internal/board"
	"github.com/flowdeck/flowdeck/internal/recurrence"
	"github.com/flowdeck/flowdeck/internal/tasks"
)

// EngineState is the full persisted aggregate. The engine treats it as an
// opaque snapshot: load replaces everything, save rewrites everything.
type EngineState struct {
	Tasks     []*tasks.Task          `json:"tasks"`
	Templates []*recurrence.Template `json:"templates"`
	Rules     []*automation.Rule     `json:"rules"`
	Columns   []board.Column         `json:"columns"`
}

const (
	kindTask     = "task"
	kindTemplate = "template"
	kindRule     = "rule"
	kindColumn   = "column"
)

// SnapshotStore persists engine snapshots in a SQLite database, one JSON
// row per entity.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (or creates) the snapshot database at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS snapshot (
			kind TEXT NOT NULL,
			id   TEXT NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with state in a single transaction.
func (s *SnapshotStore) Save(state EngineState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO snapshot (kind, id, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	insert := func(kind, id string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", kind, id, err)
		}
		if _, err := stmt.Exec(kind, id, string(data)); err != nil {
			return fmt.Errorf("insert %s %s: %w", kind, id, err)
		}
		return nil
	}

	for _, t := range state.Tasks {
		if err := insert(kindTask, t.ID, t); err != nil {
			return err
		}
	}
	for _, t := range state.Templates {
		if err := insert(kindTemplate, t.ID, t); err != nil {
			return err
		}
	}
	for _, r := range state.Rules {
		if err := insert(kindRule, r.ID, r); err != nil {
			return err
		}
	}
	for _, c := range state.Columns {
		if err := insert(kindColumn, c.ID, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Load reads the full stored snapshot.
func (s *SnapshotStore) Load() (EngineState, error) {
	var state EngineState

	rows, err := s.db.Query(`SELECT kind, id, data FROM snapshot`)
	if err != nil {
		return state, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, id, data string
		if err := rows.Scan(&kind, &id, &data); err != nil {
			return state, fmt.Errorf("scan snapshot row: %w", err)
		}

		switch kind {
		case kindTask:
			var t tasks.Task
			if err := json.Unmarshal([]byte(data), &t); err != nil {
				return state, fmt.Errorf("unmarshal task %s: %w", id, err)
			}
			state.Tasks = append(state.Tasks, &t)
		case kindTemplate:
			var t recurrence.Template
			if err := json.Unmarshal([]byte(data), &t); err != nil {
				return state, fmt.Errorf("unmarshal template %s: %w", id, err)
			}
			state.Templates = append(state.Templates, &t)
		case kindRule:
			var r automation.Rule
			if err := json.Unmarshal([]byte(data), &r); err != nil {
				return state, fmt.Errorf("unmarshal rule %s: %w", id, err)
			}
			state.Rules = append(state.Rules, &r)
		case kindColumn:
			var c board.Column
			if err := json.Unmarshal([]byte(data), &c); err != nil {
				return state, fmt.Errorf("unmarshal column %s: %w", id, err)
			}
			state.Columns = append(state.Columns, c)
		}
	}
	return state, rows.Err()
}
