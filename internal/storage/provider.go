// Package storage maps notes to files in the notes directory.
package storage

import "github.com/starford/tomatxt/internal/models"

// Provider is the interface for note file operations. Paths are relative
// to the notes directory.
type Provider interface {
	// List returns metadata for every .md file directly inside dir.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Delete removes the file at path. A missing file is not an error.
	Delete(path string) error
	// Root returns the absolute notes directory.
	Root() string
}
