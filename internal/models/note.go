// Package models defines the domain types for tomatxt.
package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/tomatxt/internal/checkbox"
)

// PreviewLength is the number of runes kept in NotePreview.ContentPreview.
const PreviewLength = 100

// Note is a single note. Root notes (empty ParentID) own a file; children
// live inside their root's file.
type Note struct {
	ID            string `json:"id"`
	ParentID      string `json:"parent_id,omitempty"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	IsTask        bool   `json:"is_task"`
	IsDone        bool   `json:"is_done"`
	PomodoroCount int    `json:"pomodoro_count"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	Children      []Note `json:"children,omitempty"`

	// ContentWithoutCheckboxes is derived on read and never written to disk.
	ContentWithoutCheckboxes string `json:"content_without_checkboxes,omitempty"`
}

// NotePreview is the list-view projection of a Note.
type NotePreview struct {
	ID                       string `json:"id"`
	ParentID                 string `json:"parent_id,omitempty"`
	Title                    string `json:"title"`
	ContentPreview           string `json:"content_preview"`
	ContentWithoutCheckboxes string `json:"content_without_checkboxes"`
	ChildCount               int    `json:"child_count"`
	IsTask                   bool   `json:"is_task"`
	IsDone                   bool   `json:"is_done"`
	PomodoroCount            int    `json:"pomodoro_count"`
	CreatedAt                int64  `json:"created_at"`
	UpdatedAt                int64  `json:"updated_at"`
}

// FileMeta describes one note file in the notes directory.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CleanTitle returns title as a note file stores it: on one line, with
// surrounding whitespace dropped.
func CleanTitle(title string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(title))
}

// CleanContent returns content as a note file gives it back.
func CleanContent(content string) string {
	return strings.TrimSpace(content)
}

// NewNote builds a root note stamped with now. Title and content are
// cleaned so the note reads back from its file unchanged.
func NewNote(id, title, content string, now time.Time) Note {
	ts := now.Unix()
	return Note{
		ID:        id,
		Title:     CleanTitle(title),
		Content:   CleanContent(content),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// IsRoot reports whether the note owns its own file.
func (n Note) IsRoot() bool {
	return n.ParentID == ""
}

// Clone returns a deep copy; mutations on the copy never reach n.
func (n Note) Clone() Note {
	out := n
	if n.Children != nil {
		out.Children = make([]Note, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Touch returns a copy with UpdatedAt moved forward. UpdatedAt always
// increases, even when called twice within the same second.
func (n Note) Touch(now time.Time) Note {
	ts := now.Unix()
	if ts <= n.UpdatedAt {
		ts = n.UpdatedAt + 1
	}
	n.UpdatedAt = ts
	return n
}

// WithDerived returns a copy with ContentWithoutCheckboxes populated.
func (n Note) WithDerived() Note {
	n.ContentWithoutCheckboxes = checkbox.StripLines(n.Content)
	return n
}

// Preview projects n for list views.
func (n Note) Preview(childCount int) NotePreview {
	stripped := checkbox.StripLines(n.Content)
	return NotePreview{
		ID:                       n.ID,
		ParentID:                 n.ParentID,
		Title:                    n.Title,
		ContentPreview:           truncate(stripped, PreviewLength),
		ContentWithoutCheckboxes: stripped,
		ChildCount:               childCount,
		IsTask:                   n.IsTask,
		IsDone:                   n.IsDone,
		PomodoroCount:            n.PomodoroCount,
		CreatedAt:                n.CreatedAt,
		UpdatedAt:                n.UpdatedAt,
	}
}

// Find searches the subtree rooted at n, n included, depth first.
func (n Note) Find(id string) (Note, bool) {
	if n.ID == id {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := c.Find(id); ok {
			return found, true
		}
	}
	return Note{}, false
}

// Count returns the number of notes in the subtree, n included.
func (n Note) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Walk calls fn for n and every descendant in depth-first order.
func (n Note) Walk(fn func(Note)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Modify applies fn to the note with the given id inside the subtree and
// returns the rewritten tree. ok is false when no note matched.
func (n Note) Modify(id string, fn func(Note) Note) (Note, bool) {
	if n.ID == id {
		return fn(n), true
	}
	for i, c := range n.Children {
		if updated, ok := c.Modify(id, fn); ok {
			out := n.Clone()
			out.Children[i] = updated
			return out, true
		}
	}
	return n, false
}

// Remove drops the descendant with the given id, and its subtree, from
// a copy of n. The root itself cannot be removed; ok is false when no
// descendant matched.
func (n Note) Remove(id string) (Note, bool) {
	for i, c := range n.Children {
		if c.ID == id {
			out := n.Clone()
			out.Children = append(out.Children[:i:i], out.Children[i+1:]...)
			if len(out.Children) == 0 {
				out.Children = nil
			}
			return out, true
		}
		if updated, ok := c.Remove(id); ok {
			out := n.Clone()
			out.Children[i] = updated
			return out, true
		}
	}
	return n, false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
