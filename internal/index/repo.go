package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/checksum"
	"github.com/starford/tomatxt/internal/models"
	"github.com/starford/tomatxt/internal/parser"
)

// NoteRow represents a row in the notes table. Every note of a tree,
// root or nested, gets its own row.
type NoteRow struct {
	ID            string
	ParentID      string
	RootID        string
	Title         string
	Body          string
	Tags          []string
	IsTask        bool
	IsDone        bool
	PomodoroCount int
	UpdatedAt     int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	RootID  string `json:"root_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertTree replaces every row of the tree rooted at root within a
// transaction.
func (db *DB) UpsertTree(root models.Note) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	deleteTree(tx, root.ID)
	if err := insertTree(tx, root); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTree removes a root note and all of its descendants.
func (db *DB) DeleteTree(rootID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	deleteTree(tx, rootID)
	return tx.Commit()
}

// Rebuild drops the whole index and inserts roots.
func (db *DB) Rebuild(roots []models.Note) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsClear(tx)
	_, _ = tx.Exec(`DELETE FROM notes`)
	_, _ = tx.Exec(`DELETE FROM files`)
	for _, r := range roots {
		if err := insertTree(tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetNote returns the indexed row for id, nested notes included.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	var (
		r    NoteRow
		tags string
	)
	err := db.conn.QueryRow(`
		SELECT id, parent_id, root_id, title, body, tags, is_task, is_done, pomodoro_count, updated_at
		FROM notes WHERE id = ?
	`, id).Scan(&r.ID, &r.ParentID, &r.RootID, &r.Title, &r.Body, &tags,
		&r.IsTask, &r.IsDone, &r.PomodoroCount, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	return &r, nil
}

// RootChecksums returns the stored file checksum of every indexed root.
func (db *DB) RootChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT root_id, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: root checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func deleteTree(tx *sql.Tx, rootID string) {
	ftsDeleteTree(tx, rootID)
	_, _ = tx.Exec(`DELETE FROM notes WHERE root_id = ?`, rootID)
	_, _ = tx.Exec(`DELETE FROM files WHERE root_id = ?`, rootID)
}

func insertTree(tx *sql.Tx, root models.Note) error {
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO notes
			(id, parent_id, root_id, position, title, body, tags, is_task, is_done, pomodoro_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer stmt.Close()

	pos := 0
	var walkErr error
	root.Walk(func(n models.Note) {
		if walkErr != nil {
			return
		}
		tags := parser.Tags(n.Content)
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, _ := json.Marshal(tags)
		if _, err := stmt.Exec(n.ID, n.ParentID, root.ID, pos, n.Title, n.Content, string(tagsJSON),
			n.IsTask, n.IsDone, n.PomodoroCount, n.UpdatedAt); err != nil {
			walkErr = fmt.Errorf("index: insert note %s: %w", n.ID, err)
			return
		}
		if err := ftsUpsert(tx, n.ID, root.ID, n.Title, n.Content, tags); err != nil {
			walkErr = err
		}
		pos++
	})
	if walkErr != nil {
		return walkErr
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO files (root_id, checksum) VALUES (?, ?)`,
		root.ID, checksum.Note(root)); err != nil {
		return fmt.Errorf("index: upsert file checksum: %w", err)
	}
	return nil
}
