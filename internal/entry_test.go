package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tomatxt/internal/index"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) (*Config, string) {
	t.Helper()
	base := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Notes.Dir = filepath.Join(base, "notes")
	return cfg, base
}

func TestOpenCore_CreatesDirAndIndex(t *testing.T) {
	cfg, base := testConfig(t)
	ctx := context.Background()

	c, err := OpenCore(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("OpenCore: %v", err)
	}
	defer c.Close()

	if c.Dir != cfg.Notes.Dir {
		t.Errorf("dir = %q, want %q", c.Dir, cfg.Notes.Dir)
	}
	if c.Index == nil {
		t.Fatal("index should be open by default")
	}
	if _, err := os.Stat(filepath.Join(base, "tomatxt.db")); err != nil {
		t.Errorf("index file missing: %v", err)
	}

	n, err := c.Service.Create(ctx, "hello", "#greeting world")
	if err != nil {
		t.Fatal(err)
	}
	row, err := c.Index.GetNote(n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if row.Title != "hello" {
		t.Errorf("indexed title = %q", row.Title)
	}
}

func TestOpenCore_IndexDisabled(t *testing.T) {
	cfg, base := testConfig(t)
	cfg.SQLite.Enabled = false

	c, err := OpenCore(context.Background(), cfg, quietLogger())
	if err != nil {
		t.Fatalf("OpenCore: %v", err)
	}
	defer c.Close()

	if c.Index != nil {
		t.Error("index should not be opened")
	}
	if _, err := os.Stat(filepath.Join(base, "tomatxt.db")); !os.IsNotExist(err) {
		t.Errorf("index file should not exist, stat err = %v", err)
	}
}

func TestOpenCore_LoadsExistingNotes(t *testing.T) {
	cfg, _ := testConfig(t)
	ctx := context.Background()

	c, err := OpenCore(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	n, err := c.Service.Create(ctx, "persisted", "")
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = OpenCore(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	got, err := c.Service.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Title != "persisted" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestSyncIndex_PicksUpExternalFile(t *testing.T) {
	cfg, base := testConfig(t)
	if err := os.MkdirAll(cfg.Notes.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "---\nid: 7-synced\ntitle: synced\n---\n\nfrom outside\n"
	if err := os.WriteFile(filepath.Join(cfg.Notes.Dir, "7-synced.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := SyncIndex(cfg, quietLogger()); err != nil {
		t.Fatalf("SyncIndex: %v", err)
	}

	db, err := index.Open(filepath.Join(base, "tomatxt.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	row, err := db.GetNote("7-synced")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if row.Body != "from outside" {
		t.Errorf("body = %q", row.Body)
	}
}
