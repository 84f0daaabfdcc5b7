package models

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/xid"
)

const slugRunes = 8

// IDGenerator produces note ids. The cache calls it once per creation.
type IDGenerator interface {
	NewID(title string, now time.Time) string
}

// SlugIDs issues "{unix}-{slug}" ids. When the same id would be issued
// twice (same second, same slug), an xid suffix is appended.
type SlugIDs struct {
	mu     sync.Mutex
	issued map[string]struct{}
}

// NewSlugIDs returns a ready SlugIDs generator.
func NewSlugIDs() *SlugIDs {
	return &SlugIDs{issued: make(map[string]struct{})}
}

// NewID implements IDGenerator.
func (g *SlugIDs) NewID(title string, now time.Time) string {
	id := fmt.Sprintf("%d-%s", now.Unix(), Slug(title))

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.issued == nil {
		g.issued = make(map[string]struct{})
	}
	if _, dup := g.issued[id]; dup {
		id = id + "-" + xid.New().String()
	}
	g.issued[id] = struct{}{}
	return id
}

// Slug keeps the first eight runes of title, replacing spaces and any
// rune that is unsafe in a file name with '-'.
func Slug(title string) string {
	var sb strings.Builder
	n := 0
	for _, r := range title {
		if n == slugRunes {
			break
		}
		n++
		switch {
		case r == ' ', r == '/', r == '\\', r == ':':
			sb.WriteRune('-')
		case unicode.IsControl(r), strings.ContainsRune(`*?"<>|`, r):
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
