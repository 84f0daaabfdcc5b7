package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/models"
)

func newTestNotes(t *testing.T) *Notes {
	t.Helper()
	return NewNotes(tempNotesDir(t), nil, 2)
}

func TestResolveNotesDir_Home(t *testing.T) {
	home := t.TempDir()
	lookup := func(k string) (string, bool) {
		if k == "HOME" {
			return home, true
		}
		return "", false
	}

	dir, err := ResolveNotesDir(lookup, "")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tomatxt", "notes"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolveNotesDir_FallsBackToUserProfile(t *testing.T) {
	profile := t.TempDir()
	lookup := func(k string) (string, bool) {
		if k == "USERPROFILE" {
			return profile, true
		}
		return "", false
	}

	dir, err := ResolveNotesDir(lookup, "")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(profile, ".tomatxt", "notes"), dir)
}

func TestResolveNotesDir_Override(t *testing.T) {
	override := filepath.Join(t.TempDir(), "custom")
	dir, err := ResolveNotesDir(func(string) (string, bool) { return "", false }, override)
	require.NoError(t, err)
	assert.Equal(t, override, dir)
}

func TestResolveNotesDir_NoHome(t *testing.T) {
	_, err := ResolveNotesDir(func(string) (string, bool) { return "", false }, "")
	assert.ErrorIs(t, err, apperr.ErrNoHome)
}

func TestNotes_SaveAndLoad(t *testing.T) {
	n := newTestNotes(t)
	note := models.Note{
		ID:        "100-hello",
		Title:     "hello",
		Content:   "- [ ] one\nbody",
		CreatedAt: 100,
		UpdatedAt: 100,
		Children:  []models.Note{{ID: "101-kid", ParentID: "100-hello", Title: "kid", CreatedAt: 101, UpdatedAt: 101}},
	}

	require.NoError(t, n.Save(note))
	got, err := n.Load("100-hello")

	require.NoError(t, err)
	assert.Equal(t, note, got)
	_, err = os.Stat(filepath.Join(n.Dir(), "100-hello.md"))
	assert.NoError(t, err)
}

func TestNotes_SaveChildIsNoop(t *testing.T) {
	n := newTestNotes(t)
	require.NoError(t, n.Save(models.Note{ID: "2-c", ParentID: "1-p"}))

	_, err := os.Stat(filepath.Join(n.Dir(), "2-c.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestNotes_LoadMissing(t *testing.T) {
	n := newTestNotes(t)
	_, err := n.Load("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNotes_LoadAllSkipsCorruptFiles(t *testing.T) {
	n := newTestNotes(t)
	for _, id := range []string{"3-c", "1-a", "2-b"} {
		require.NoError(t, n.Save(models.Note{ID: id, Title: id}))
	}
	dir := n.Dir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0-broken.md"), []byte("no metadata here"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-noid.md"), []byte("---\ntitle: x\n---\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	notes, err := n.LoadAll(context.Background())

	require.NoError(t, err)
	ids := make([]string, len(notes))
	for i, note := range notes {
		ids[i] = note.ID
	}
	assert.Equal(t, []string{"1-a", "2-b", "3-c"}, ids)
}

func TestNotes_RootFileParentIDIsDropped(t *testing.T) {
	n := newTestNotes(t)
	doc := "---\nid: r1\nparent_id: ghost\ntitle: T\n---\n\nold body\n"
	require.NoError(t, os.WriteFile(filepath.Join(n.Dir(), "r1.md"), []byte(doc), 0o644))

	got, err := n.Load("r1")
	require.NoError(t, err)
	assert.True(t, got.IsRoot())

	notes, err := n.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Empty(t, notes[0].ParentID)

	// The note must still be writable once loaded.
	notes[0].Content = "new body"
	require.NoError(t, n.Save(notes[0]))
	got, err = n.Load("r1")
	require.NoError(t, err)
	assert.Equal(t, "new body", got.Content)
}

func TestNotes_LoadAllSkipsIDMismatch(t *testing.T) {
	n := newTestNotes(t)
	require.NoError(t, n.Save(models.Note{ID: "r2", Title: "original"}))
	copied := "---\nid: r2\ntitle: copy\n---\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(n.Dir(), "r2 copy.md"), []byte(copied), 0o644))

	notes, err := n.LoadAll(context.Background())

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "original", notes[0].Title)

	_, err = n.Load("r2 copy")
	assert.Error(t, err)
}

func TestNotes_LoadAllEmptyDir(t *testing.T) {
	notes, err := newTestNotes(t).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestNotes_LoadAllCancelled(t *testing.T) {
	n := newTestNotes(t)
	require.NoError(t, n.Save(models.Note{ID: "1-a"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.LoadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotes_Delete(t *testing.T) {
	n := newTestNotes(t)
	require.NoError(t, n.Save(models.Note{ID: "1-a"}))

	require.NoError(t, n.Delete("1-a"))
	require.NoError(t, n.Delete("1-a"))

	_, err := n.Load("1-a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIDFromPath(t *testing.T) {
	id, ok := IDFromPath("/x/y/170-abc.md")
	assert.True(t, ok)
	assert.Equal(t, "170-abc", id)

	_, ok = IDFromPath("/x/.tomatxt-tmp-123")
	assert.False(t, ok)
	_, ok = IDFromPath("/x/readme.txt")
	assert.False(t, ok)
}
