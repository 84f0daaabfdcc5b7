package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/models"
	"github.com/starford/tomatxt/internal/parser"
)

// NotesSubdir is appended to the home directory when no override is set.
var NotesSubdir = filepath.Join(".tomatxt", "notes")

// homeVars are tried in order.
var homeVars = []string{"HOME", "USERPROFILE"}

// ResolveNotesDir returns the notes directory, creating it if absent.
// A non-empty override is used as-is; otherwise the first set home
// variable (HOME, then USERPROFILE) is joined with NotesSubdir.
// lookup is usually os.LookupEnv.
func ResolveNotesDir(lookup func(string) (string, bool), override string) (string, error) {
	dir := override
	if dir == "" {
		for _, name := range homeVars {
			if v, ok := lookup(name); ok && v != "" {
				dir = filepath.Join(v, NotesSubdir)
				break
			}
		}
	}
	if dir == "" {
		return "", apperr.ErrNoHome
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create notes dir: %w", err)
	}
	return dir, nil
}

// Notes maps root notes to "{id}.md" files through a Provider.
type Notes struct {
	store       Provider
	logger      *slog.Logger
	concurrency int
}

// NewNotes creates a Notes engine. concurrency bounds the number of files
// parsed at once by LoadAll; zero or less means GOMAXPROCS.
func NewNotes(store Provider, logger *slog.Logger, concurrency int) *Notes {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Notes{store: store, logger: logger, concurrency: concurrency}
}

// Dir returns the notes directory.
func (n *Notes) Dir() string {
	return n.store.Root()
}

// FileName returns the file name a root note is stored under.
func FileName(id string) string {
	return id + NoteExt
}

// IDFromPath returns the note id for a note file path and whether the
// path looks like a note file.
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, NoteExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, NoteExt), true
}

// Save writes a root note, with its subtree, to its file. Saving a
// child note does nothing: children only live inside their root's file.
func (n *Notes) Save(note models.Note) error {
	if !note.IsRoot() {
		return nil
	}
	if err := n.store.Write(FileName(note.ID), []byte(parser.Format(note))); err != nil {
		return fmt.Errorf("save note %s: %w", note.ID, err)
	}
	return nil
}

// Load reads and parses the root note with the given id.
func (n *Notes) Load(id string) (models.Note, error) {
	data, err := n.store.Read(FileName(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Note{}, fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
		}
		return models.Note{}, err
	}
	return n.decode(FileName(id), data)
}

// decode parses the file at path as a root note. The file name is the
// note's identity: a metadata id that disagrees with it is an error, and
// a parent_id in a root file is dropped so the note can still be saved.
func (n *Notes) decode(path string, data []byte) (models.Note, error) {
	note, err := parser.Parse(data, "")
	if err != nil {
		return models.Note{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if id, ok := IDFromPath(path); ok && id != note.ID {
		return models.Note{}, fmt.Errorf("parse %s: metadata id %q does not match file name", path, note.ID)
	}
	if note.ParentID != "" {
		n.logger.Warn("ignoring parent_id of root note file",
			slog.String("path", path),
			slog.String("parent_id", note.ParentID))
		note.ParentID = ""
	}
	return note, nil
}

// LoadAll parses every note file in the directory. Files are parsed in
// parallel; a file that cannot be read or parsed is logged and skipped.
// The result keeps the listing order (file name order).
func (n *Notes) LoadAll(ctx context.Context) ([]models.Note, error) {
	files, err := n.store.List("")
	if err != nil {
		return nil, err
	}

	results := make([]*models.Note, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := n.store.Read(f.Path)
			if err != nil {
				n.logger.Warn("skipping unreadable note file",
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
				return nil
			}
			note, err := n.decode(f.Path, data)
			if err != nil {
				n.logger.Warn("skipping malformed note file",
					slog.String("path", f.Path),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = &note
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	notes := make([]models.Note, 0, len(results))
	for _, r := range results {
		if r != nil {
			notes = append(notes, *r)
		}
	}
	return notes, nil
}

// Delete removes the file of a root note. A missing file is fine.
func (n *Notes) Delete(id string) error {
	if err := n.store.Delete(FileName(id)); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}
