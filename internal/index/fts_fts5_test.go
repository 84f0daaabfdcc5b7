//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/tomatxt/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	root := models.Note{ID: "1-fts", Title: "FTS Note", Content: "tomatxt provides powerful full-text search capabilities."}
	if err := db.UpsertTree(root); err != nil {
		t.Fatalf("UpsertTree: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "1-fts" {
		t.Errorf("id = %q", results[0].ID)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTree(models.Note{ID: "1-gone", Children: []models.Note{{ID: "2-kid", ParentID: "1-gone", Content: "vanishing content"}}})
	_ = db.DeleteTree("1-gone")

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Errorf("deleted tree still in FTS index: %+v", results)
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTree(models.Note{ID: "1-evo", Title: "Old", Content: "original text"})
	_ = db.UpsertTree(models.Note{ID: "1-evo", Title: "New", Content: "replacement text"})

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
