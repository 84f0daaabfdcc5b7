package index

import "github.com/starford/tomatxt/internal/models"

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertTree(root models.Note) error
	DeleteTree(rootID string) error
	Rebuild(roots []models.Note) error
	Search(query string, limit int) ([]SearchResult, error)
	GetNote(id string) (*NoteRow, error)
	RootChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
