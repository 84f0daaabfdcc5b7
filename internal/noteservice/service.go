// Package noteservice holds the in-memory mirror of all root notes and
// the commands that keep it consistent with the note files.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/checkbox"
	"github.com/starford/tomatxt/internal/index"
	"github.com/starford/tomatxt/internal/models"
	"github.com/starford/tomatxt/internal/storage"
)

// maxIDAttempts bounds how often Create asks the generator for a fresh id.
const maxIDAttempts = 5

// Event kinds passed to the notifier.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDeleted  = "deleted"
	EventReloaded = "reloaded"
)

// Event describes a committed change.
type Event struct {
	Kind   string `json:"kind"`
	ID     string `json:"id,omitempty"`
	RootID string `json:"root_id,omitempty"`
}

// SearchHit is one search result.
type SearchHit = index.SearchResult

// Service coordinates the note files, the cache and the optional index.
//
// Mutations are serialized by write and follow clone → mutate → persist →
// swap: the cache lock (mu) is only held while reading or swapping, never
// across disk I/O. A panic inside a critical section poisons the cache and
// every later call fails with apperr.ErrLockPoisoned.
type Service struct {
	notes  *storage.Notes
	idx    index.NoteIndex
	ids    models.IDGenerator
	now    func() time.Time
	logger *slog.Logger
	notify func(Event)

	write sync.Mutex

	mu       sync.Mutex
	roots    []models.Note
	pos      map[string]int    // root id -> index in roots
	owner    map[string]string // any cached id -> id of its root
	poisoned bool
}

// Option configures a Service.
type Option func(*Service)

// WithIndex mirrors every committed tree into idx and uses it for Search.
func WithIndex(idx index.NoteIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// WithIDs sets the id generator.
func WithIDs(g models.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers fn to be called after every committed change.
func WithNotifier(fn func(Event)) Option {
	return func(s *Service) { s.notify = fn }
}

// NewService creates a Service with an empty cache. Call ReloadAll to
// populate it, or use Open.
func NewService(notes *storage.Notes, opts ...Option) *Service {
	s := &Service{
		notes:  notes,
		ids:    models.NewSlugIDs(),
		now:    time.Now,
		logger: slog.Default(),
		pos:    make(map[string]int),
		owner:  make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open creates a Service and loads every note file into the cache.
func Open(ctx context.Context, notes *storage.Notes, opts ...Option) (*Service, error) {
	s := NewService(notes, opts...)
	if _, err := s.ReloadAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// withLock runs fn holding the cache lock.
func (s *Service) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return apperr.ErrLockPoisoned
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			panic(r)
		}
	}()
	return fn()
}

// Create builds a new root note, persists it and adds it to the cache.
func (s *Service) Create(_ context.Context, title, content string) (models.Note, error) {
	s.write.Lock()
	defer s.write.Unlock()

	now := s.now()
	id, err := s.freshID(models.CleanTitle(title), now)
	if err != nil {
		return models.Note{}, err
	}
	note := models.NewNote(id, title, content, now)
	if err := s.notes.Save(note); err != nil {
		return models.Note{}, err
	}
	if err := s.withLock(func() error {
		s.roots = append(s.roots, note)
		s.pos[note.ID] = len(s.roots) - 1
		s.owner[note.ID] = note.ID
		return nil
	}); err != nil {
		return models.Note{}, err
	}
	s.committed(note, Event{Kind: EventCreated, ID: note.ID, RootID: note.ID})
	return note.WithDerived(), nil
}

// CreateChild adds a new note under parentID, which may be a root or any
// nested note, and rewrites the root's file.
func (s *Service) CreateChild(_ context.Context, parentID, title, content string) (models.Note, error) {
	s.write.Lock()
	defer s.write.Unlock()

	root, err := s.rootOf(parentID)
	if err != nil {
		return models.Note{}, err
	}
	now := s.now()
	id, err := s.freshID(models.CleanTitle(title), now)
	if err != nil {
		return models.Note{}, err
	}
	child := models.NewNote(id, title, content, now)
	child.ParentID = parentID

	updated, _ := root.Modify(parentID, func(p models.Note) models.Note {
		p.Children = append(p.Children, child)
		return p.Touch(now)
	})
	if err := s.commit(updated, Event{Kind: EventCreated, ID: child.ID, RootID: root.ID}); err != nil {
		return models.Note{}, err
	}
	return child.WithDerived(), nil
}

// List returns a preview of every cached root note, in cache order.
func (s *Service) List(_ context.Context) ([]models.NotePreview, error) {
	var out []models.NotePreview
	err := s.withLock(func() error {
		out = make([]models.NotePreview, len(s.roots))
		for i, n := range s.roots {
			out[i] = n.Preview(len(n.Children))
		}
		return nil
	})
	return out, err
}

// Get returns the root note with the given id. Nested notes are not
// searched.
func (s *Service) Get(_ context.Context, id string) (models.Note, error) {
	var out models.Note
	err := s.withLock(func() error {
		i, ok := s.pos[id]
		if !ok {
			return fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
		}
		out = s.roots[i].Clone()
		return nil
	})
	if err != nil {
		return models.Note{}, err
	}
	return out.WithDerived(), nil
}

// Update replaces the title and content of a note.
func (s *Service) Update(ctx context.Context, id, title, content string) (models.Note, error) {
	return s.mutate(ctx, id, func(n models.Note) models.Note {
		n.Title = models.CleanTitle(title)
		n.Content = models.CleanContent(content)
		return n
	})
}

// SetTask sets the task flags of a note.
func (s *Service) SetTask(ctx context.Context, id string, isTask, isDone bool) (models.Note, error) {
	return s.mutate(ctx, id, func(n models.Note) models.Note {
		n.IsTask = isTask
		n.IsDone = isDone
		return n
	})
}

// IncrementPomodoro adds one finished pomodoro to a note.
func (s *Service) IncrementPomodoro(ctx context.Context, id string) (models.Note, error) {
	return s.mutate(ctx, id, func(n models.Note) models.Note {
		n.PomodoroCount++
		return n
	})
}

// UpdateCheckbox sets the state of every checkbox line of a note whose
// text equals text.
func (s *Service) UpdateCheckbox(ctx context.Context, id, text string, completed bool) (models.Note, error) {
	return s.mutate(ctx, id, func(n models.Note) models.Note {
		n.Content = checkbox.UpdateInContent(n.Content, text, completed)
		return n
	})
}

// ParseCheckboxes returns the checkboxes of content.
func (s *Service) ParseCheckboxes(content string) []checkbox.Checkbox {
	return checkbox.Parse(content)
}

// Delete removes a note. Root notes lose their file; nested notes are
// cut out of their root's file. Deleting an unknown id is not an error.
func (s *Service) Delete(_ context.Context, id string) error {
	s.write.Lock()
	defer s.write.Unlock()

	root, err := s.rootOf(id)
	if err != nil && !isNotFound(err) {
		return err
	}

	if err != nil || root.ID == id {
		if err := s.notes.Delete(id); err != nil {
			return err
		}
		if err := s.withLock(func() error {
			s.removeRootLocked(id)
			return nil
		}); err != nil {
			return err
		}
		if s.idx != nil {
			if err := s.idx.DeleteTree(id); err != nil {
				s.logger.Warn("index delete failed", slog.String("id", id), slog.String("error", err.Error()))
			}
		}
		s.emit(Event{Kind: EventDeleted, ID: id, RootID: id})
		return nil
	}

	updated, _ := root.Remove(id)
	updated = updated.Touch(s.now())
	return s.commit(updated, Event{Kind: EventDeleted, ID: id, RootID: root.ID})
}

// ReloadAll replaces the cache with a fresh parse of the notes directory.
func (s *Service) ReloadAll(ctx context.Context) ([]models.Note, error) {
	s.write.Lock()
	defer s.write.Unlock()

	loaded, err := s.notes.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	// Ids are unique across the whole cache. A root whose subtree reuses
	// an id already seen would leave one of the two unreachable, so it is
	// left out.
	roots := make([]models.Note, 0, len(loaded))
	pos := make(map[string]int, len(loaded))
	owner := make(map[string]string, len(loaded))
	for _, n := range loaded {
		if dup := duplicateID(n, owner); dup != "" {
			s.logger.Warn("skipping note file with duplicate id",
				slog.String("root_id", n.ID),
				slog.String("id", dup))
			continue
		}
		pos[n.ID] = len(roots)
		roots = append(roots, n)
		n.Walk(func(d models.Note) { owner[d.ID] = n.ID })
	}
	loaded = roots
	if err := s.withLock(func() error {
		s.roots = loaded
		s.pos = pos
		s.owner = owner
		return nil
	}); err != nil {
		return nil, err
	}

	if s.idx != nil {
		if err := s.idx.Rebuild(loaded); err != nil {
			s.logger.Warn("index rebuild failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("notes reloaded", slog.Int("roots", len(loaded)))
	s.emit(Event{Kind: EventReloaded})

	out := make([]models.Note, len(loaded))
	for i, n := range loaded {
		out[i] = n.Clone().WithDerived()
	}
	return out, nil
}

// duplicateID returns the first id in n's subtree that is already owned
// or repeated within the subtree, or "".
func duplicateID(n models.Note, owner map[string]string) string {
	seen := make(map[string]struct{})
	dup := ""
	n.Walk(func(d models.Note) {
		if dup != "" {
			return
		}
		if _, ok := owner[d.ID]; ok {
			dup = d.ID
			return
		}
		if _, ok := seen[d.ID]; ok {
			dup = d.ID
			return
		}
		seen[d.ID] = struct{}{}
	})
	return dup
}

// Search finds notes, nested ones included, whose title or content
// matches query. Without an index it scans the cache case-insensitively.
func (s *Service) Search(_ context.Context, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.idx != nil {
		return s.idx.Search(query, limit)
	}

	q := strings.ToLower(query)
	var hits []SearchHit
	err := s.withLock(func() error {
		for _, root := range s.roots {
			root.Walk(func(n models.Note) {
				if len(hits) >= limit {
					return
				}
				if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
					hits = append(hits, SearchHit{ID: n.ID, RootID: root.ID, Title: n.Title, Snippet: snippet(n.Content)})
				}
			})
		}
		return nil
	})
	return hits, err
}

// mutate applies fn to the note with the given id, anywhere in the
// cached trees, and commits the rewritten root.
func (s *Service) mutate(_ context.Context, id string, fn func(models.Note) models.Note) (models.Note, error) {
	s.write.Lock()
	defer s.write.Unlock()

	root, err := s.rootOf(id)
	if err != nil {
		return models.Note{}, err
	}
	now := s.now()
	var changed models.Note
	updated, _ := root.Modify(id, func(n models.Note) models.Note {
		changed = fn(n).Touch(now)
		return changed
	})
	if err := s.commit(updated, Event{Kind: EventUpdated, ID: id, RootID: root.ID}); err != nil {
		return models.Note{}, err
	}
	return changed.WithDerived(), nil
}

// commit persists root and swaps it into the cache. Callers hold write.
func (s *Service) commit(root models.Note, ev Event) error {
	if err := s.notes.Save(root); err != nil {
		return err
	}
	if err := s.withLock(func() error {
		i, ok := s.pos[root.ID]
		if !ok {
			return fmt.Errorf("note %s: %w", root.ID, apperr.ErrNotFound)
		}
		s.unownLocked(s.roots[i])
		s.roots[i] = root
		root.Walk(func(n models.Note) { s.owner[n.ID] = root.ID })
		return nil
	}); err != nil {
		return err
	}
	s.committed(root, ev)
	return nil
}

// committed feeds a persisted tree to the index and the notifier.
func (s *Service) committed(root models.Note, ev Event) {
	if s.idx != nil {
		if err := s.idx.UpsertTree(root); err != nil {
			s.logger.Warn("index update failed", slog.String("id", root.ID), slog.String("error", err.Error()))
		}
	}
	s.emit(ev)
}

func (s *Service) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// rootOf returns a deep copy of the cached root whose tree holds id.
func (s *Service) rootOf(id string) (models.Note, error) {
	var out models.Note
	err := s.withLock(func() error {
		rootID, ok := s.owner[id]
		if !ok {
			return fmt.Errorf("note %s: %w", id, apperr.ErrNotFound)
		}
		out = s.roots[s.pos[rootID]].Clone()
		return nil
	})
	return out, err
}

// freshID asks the generator for an id not yet used by any cached note.
func (s *Service) freshID(title string, now time.Time) (string, error) {
	for range maxIDAttempts {
		id := s.ids.NewID(title, now)
		var taken bool
		if err := s.withLock(func() error {
			taken = s.containsLocked(id)
			return nil
		}); err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate id for %q: %w", title, apperr.ErrAlreadyExists)
}

func (s *Service) containsLocked(id string) bool {
	_, ok := s.owner[id]
	return ok
}

func (s *Service) unownLocked(root models.Note) {
	root.Walk(func(n models.Note) { delete(s.owner, n.ID) })
}

func (s *Service) removeRootLocked(id string) {
	i, ok := s.pos[id]
	if !ok {
		return
	}
	s.unownLocked(s.roots[i])
	s.roots = append(s.roots[:i], s.roots[i+1:]...)
	delete(s.pos, id)
	for j := i; j < len(s.roots); j++ {
		s.pos[s.roots[j].ID] = j
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}

func snippet(content string) string {
	r := []rune(content)
	if len(r) > 200 {
		r = r[:200]
	}
	return string(r)
}
