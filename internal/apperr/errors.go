// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrFormat reports a note file that does not follow the document grammar.
	ErrFormat = errors.New("invalid note format")
	// ErrNoHome reports that no home-directory variable is set.
	ErrNoHome = errors.New("could not find home directory")
	// ErrLockPoisoned is returned by the note cache after a critical section panicked.
	ErrLockPoisoned = errors.New("note cache lock poisoned")
)
