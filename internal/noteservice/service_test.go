package noteservice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/checkbox"
	"github.com/starford/tomatxt/internal/checksum"
	"github.com/starford/tomatxt/internal/storage"
	"github.com/starford/tomatxt/internal/testutil"
)

// fixedClock returns the same instant until advanced.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type env struct {
	svc   *Service
	dir   string
	clock *fixedClock
	rec   *recorder
}

func newEnv(t *testing.T, opts ...Option) env {
	t.Helper()
	dir, store := testutil.TestNotesDir(t)
	clock := &fixedClock{t: time.Unix(1700000000, 0)}
	rec := &recorder{}
	base := []Option{WithClock(clock.Now), WithNotifier(rec.record), WithLogger(testutil.Logger())}
	svc, err := Open(context.Background(), storage.NewNotes(store, testutil.Logger(), 2), append(base, opts...)...)
	require.NoError(t, err)
	return env{svc: svc, dir: dir, clock: clock, rec: rec}
}

func (e env) fileExists(id string) bool {
	_, err := os.Stat(filepath.Join(e.dir, id+".md"))
	return err == nil
}

func TestEndToEnd_CheckboxFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.svc.Create(ctx, "Title A", "- [ ] task1\nbody")
	require.NoError(t, err)
	assert.Equal(t, "1700000000-Title-A", created.ID)
	assert.True(t, e.fileExists(created.ID))

	got, err := e.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "body", got.ContentWithoutCheckboxes)
	assert.Equal(t, []checkbox.Checkbox{{Text: "task1"}}, e.svc.ParseCheckboxes(got.Content))

	_, err = e.svc.UpdateCheckbox(ctx, created.ID, "task1", true)
	require.NoError(t, err)

	got, err = e.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "- [x] task1\nbody", got.Content)
	assert.Greater(t, got.UpdatedAt, created.CreatedAt)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
}

func TestDelete_RemovesFileAndCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, err := e.svc.Create(ctx, "bye", "")
	require.NoError(t, err)

	require.NoError(t, e.svc.Delete(ctx, n.ID))

	_, err = e.svc.Get(ctx, n.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.False(t, e.fileExists(n.ID))
	assert.NoError(t, e.svc.Delete(ctx, n.ID), "deleting twice is fine")
}

func TestDelete_KeepsOrderOfRemainingNotes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		n, err := e.svc.Create(ctx, title, "")
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	require.NoError(t, e.svc.Delete(ctx, ids[1]))
	_, err := e.svc.Update(ctx, ids[2], "c2", "x")
	require.NoError(t, err)

	list, err := e.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[0], list[0].ID)
	assert.Equal(t, "c2", list[1].Title)
}

func TestGet_NotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "old", "old body")
	e.clock.Advance(10 * time.Second)

	updated, err := e.svc.Update(ctx, n.ID, "new", "- [ ] x\nnew body")

	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "new body", updated.ContentWithoutCheckboxes)
	assert.Equal(t, n.CreatedAt+10, updated.UpdatedAt)

	reloaded, err := e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, "new", reloaded[0].Title)
}

func TestUpdate_NotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Update(context.Background(), "missing", "t", "c")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetTaskAndPomodoro(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "task", "")

	n, err := e.svc.SetTask(ctx, n.ID, true, true)
	require.NoError(t, err)
	assert.True(t, n.IsTask)
	assert.True(t, n.IsDone)

	for range 3 {
		n, err = e.svc.IncrementPomodoro(ctx, n.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, n.PomodoroCount)
}

func TestCreateChild_NestsAndPersists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "root", "root body")

	child, err := e.svc.CreateChild(ctx, root.ID, "child", "child body")
	require.NoError(t, err)
	assert.Equal(t, root.ID, child.ParentID)

	grand, err := e.svc.CreateChild(ctx, child.ID, "grand", "- [ ] deep")
	require.NoError(t, err)
	assert.Equal(t, child.ID, grand.ParentID)

	assert.False(t, e.fileExists(child.ID))
	assert.False(t, e.fileExists(grand.ID))

	reloaded, err := e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	require.Len(t, reloaded[0].Children, 1)
	require.Len(t, reloaded[0].Children[0].Children, 1)
	assert.Equal(t, grand.ID, reloaded[0].Children[0].Children[0].ID)

	list, _ := e.svc.List(ctx)
	assert.Equal(t, 1, list[0].ChildCount)
}

func TestMutateNestedNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "root", "")
	child, _ := e.svc.CreateChild(ctx, root.ID, "child", "- [ ] sub")

	updated, err := e.svc.UpdateCheckbox(ctx, child.ID, "sub", true)
	require.NoError(t, err)
	assert.Equal(t, "- [x] sub", updated.Content)

	_, err = e.svc.Get(ctx, child.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "Get only looks at roots")

	got, _ := e.svc.Get(ctx, root.ID)
	assert.Equal(t, "- [x] sub", got.Children[0].Content)
}

func TestDeleteNestedNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "root", "")
	child, _ := e.svc.CreateChild(ctx, root.ID, "child", "")

	require.NoError(t, e.svc.Delete(ctx, child.ID))

	got, err := e.svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Children)
	assert.True(t, e.fileExists(root.ID))
}

func TestCreate_SameSecondSameTitle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.svc.Create(ctx, "same", "")
	require.NoError(t, err)
	b, err := e.svc.Create(ctx, "same", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	list, _ := e.svc.List(ctx)
	assert.Len(t, list, 2)
}

type constIDs string

func (c constIDs) NewID(string, time.Time) string { return string(c) }

func TestCreate_GeneratorExhausted(t *testing.T) {
	e := newEnv(t, WithIDs(constIDs("fixed")))
	ctx := context.Background()

	_, err := e.svc.Create(ctx, "x", "")
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, "x", "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestReloadAll_ReplacesCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	kept, _ := e.svc.Create(ctx, "kept", "")
	gone, _ := e.svc.Create(ctx, "gone", "")

	require.NoError(t, os.Remove(filepath.Join(e.dir, gone.ID+".md")))
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "corrupt.md"), []byte("garbage"), 0o644))

	notes, err := e.svc.ReloadAll(ctx)

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, kept.ID, notes[0].ID)
	_, err = e.svc.Get(ctx, gone.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPoisonedCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "a", "")

	assert.Panics(t, func() {
		_ = e.svc.withLock(func() error { panic("boom") })
	})

	_, err := e.svc.Get(ctx, n.ID)
	assert.ErrorIs(t, err, apperr.ErrLockPoisoned)
	_, err = e.svc.List(ctx)
	assert.ErrorIs(t, err, apperr.ErrLockPoisoned)
	_, err = e.svc.Create(ctx, "b", "")
	assert.ErrorIs(t, err, apperr.ErrLockPoisoned)
	_, err = e.svc.Update(ctx, n.ID, "t", "c")
	assert.ErrorIs(t, err, apperr.ErrLockPoisoned)
}

func TestConcurrentMutations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "counter", "")

	const workers = 20
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = e.svc.IncrementPomodoro(ctx, n.ID)
			} else {
				_, _ = e.svc.Create(ctx, fmt.Sprintf("n%d", i), "")
			}
		}()
	}
	wg.Wait()

	got, err := e.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, workers/2, got.PomodoroCount)

	reloaded, err := e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded, 1+workers/2)
}

func TestNotifier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "a", "")
	_, _ = e.svc.Update(ctx, n.ID, "b", "")
	_ = e.svc.Delete(ctx, n.ID)

	assert.Equal(t, []string{EventReloaded, EventCreated, EventUpdated, EventDeleted}, e.rec.kinds())
}

func TestSearch_FallbackScansTree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "Groceries", "milk")
	child, _ := e.svc.CreateChild(ctx, root.ID, "sub", "buy OAT milk")
	_, _ = e.svc.Create(ctx, "Other", "nothing")

	hits, err := e.svc.Search(ctx, "oat", 10)

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, child.ID, hits[0].ID)
	assert.Equal(t, root.ID, hits[0].RootID)
}

func TestSearch_UsesIndex(t *testing.T) {
	db := testutil.TestDB(t)
	e := newEnv(t, WithIndex(db))
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "Groceries", "milk")
	child, _ := e.svc.CreateChild(ctx, root.ID, "sub", "uniqueword")

	hits, err := e.svc.Search(ctx, "uniqueword", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, child.ID, hits[0].ID)

	require.NoError(t, e.svc.Delete(ctx, root.ID))
	hits, err = e.svc.Search(ctx, "uniqueword", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	sums, err := db.RootChecksums()
	require.NoError(t, err)
	assert.Empty(t, sums)
}

func TestIndexChecksumMatchesFile(t *testing.T) {
	db := testutil.TestDB(t)
	e := newEnv(t, WithIndex(db))
	ctx := context.Background()
	n, _ := e.svc.Create(ctx, "a", "body")
	_, _ = e.svc.CreateChild(ctx, n.ID, "kid", "")

	data, err := os.ReadFile(filepath.Join(e.dir, n.ID+".md"))
	require.NoError(t, err)
	sums, err := db.RootChecksums()
	require.NoError(t, err)
	assert.Equal(t, checksum.Sum(data), sums[n.ID])
}

func TestNestedIDsFollowTheirRoot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root, _ := e.svc.Create(ctx, "root", "")
	child, _ := e.svc.CreateChild(ctx, root.ID, "child", "")
	grand, _ := e.svc.CreateChild(ctx, child.ID, "grand", "")

	require.NoError(t, e.svc.Delete(ctx, child.ID))
	_, err := e.svc.IncrementPomodoro(ctx, grand.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "grandchild goes with its parent")

	other, _ := e.svc.CreateChild(ctx, root.ID, "other", "")
	require.NoError(t, e.svc.Delete(ctx, root.ID))
	_, err = e.svc.SetTask(ctx, other.ID, true, false)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "nested ids go with their root")
}

func TestUpdate_RootFileWithParentIDIsPersisted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	doc := "---\nid: r1\nparent_id: ghost\ntitle: T\n---\n\nold body\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "r1.md"), []byte(doc), 0o644))
	_, err := e.svc.ReloadAll(ctx)
	require.NoError(t, err)

	_, err = e.svc.Update(ctx, "r1", "T", "new body")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(e.dir, "r1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "new body")
	assert.NotContains(t, string(data), "parent_id")

	_, err = e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	got, err := e.svc.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Content)
}

func TestReloadAll_DuplicateIDsStayReachable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	write := func(name, doc string) {
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, name), []byte(doc), 0o644))
	}
	write("r2.md", "---\nid: r2\ntitle: original\n---\n\n")
	// Copied file whose name no longer matches its id.
	write("r2-copy.md", "---\nid: r2\ntitle: copy\n---\n\n")
	// A root file whose child reuses the id of another root.
	write("r3.md", "---\nid: r3\ntitle: three\n---\n\n\n\n  ---\n  id: r2\n  title: clash\n  ---\n\n")

	_, err := e.svc.ReloadAll(ctx)
	require.NoError(t, err)

	list, err := e.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "original", list[0].Title)

	require.NoError(t, e.svc.Delete(ctx, "r2"))
	list, err = e.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = e.svc.Get(ctx, "r2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreate_PaddedTitleSurvivesReload(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.svc.Create(ctx, "  padded  ", "\n body \n")
	require.NoError(t, err)
	assert.Equal(t, "padded", created.Title)

	_, err = e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	got, err := e.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.Content, got.Content)

	updated, err := e.svc.Update(ctx, created.ID, " renamed ", "x")
	require.NoError(t, err)
	_, err = e.svc.ReloadAll(ctx)
	require.NoError(t, err)
	got, err = e.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, updated.Title, got.Title)
}

func TestCreate_EmptyTitle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.svc.Create(ctx, "", "body")
	require.NoError(t, err)
	assert.Equal(t, "1700000000-", created.ID)
	assert.True(t, e.fileExists(created.ID))
}
