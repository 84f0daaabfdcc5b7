// Package checksum fingerprints note files so the search index can tell
// which ones changed since it last saw them.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/starford/tomatxt/internal/models"
	"github.com/starford/tomatxt/internal/parser"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note returns the checksum the file of root has once it is saved. It
// equals Sum of the file bytes, so index rows written from memory match
// a later directory listing.
func Note(root models.Note) string {
	return Sum([]byte(parser.Format(root)))
}

// Changed reports whether a stored checksum is stale. An empty stored
// value means the file was never indexed.
func Changed(stored, current string) bool {
	return stored == "" || stored != current
}
