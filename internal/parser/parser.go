// Package parser reads and writes the note document format: a "---"
// delimited metadata block, a free-text body, and zero or more nested
// child blocks using the same grammar, indented two spaces per level.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/tomatxt/internal/apperr"
	"github.com/starford/tomatxt/internal/models"
)

const (
	delim      = "---"
	indentStep = 2
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Format serializes n and its whole subtree. The output always ends with
// a newline.
func Format(n models.Note) string {
	out := format(n)
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

func format(n models.Note) string {
	var sb strings.Builder
	sb.WriteString(delim + "\n")
	fmt.Fprintf(&sb, "id: %s\n", n.ID)
	if n.ParentID != "" {
		fmt.Fprintf(&sb, "parent_id: %s\n", n.ParentID)
	}
	fmt.Fprintf(&sb, "is_task: %t\n", n.IsTask)
	fmt.Fprintf(&sb, "is_done: %t\n", n.IsDone)
	fmt.Fprintf(&sb, "pomodoro_count: %d\n", n.PomodoroCount)
	fmt.Fprintf(&sb, "title: %s\n", singleLine(n.Title))
	fmt.Fprintf(&sb, "created_at: %d\n", n.CreatedAt)
	fmt.Fprintf(&sb, "updated_at: %d\n", n.UpdatedAt)
	sb.WriteString(delim + "\n\n")
	sb.WriteString(n.Content)

	// Children are indented relative to their parent, so a note at depth d
	// ends up indented by indentStep*d spaces.
	for _, c := range n.Children {
		sb.WriteString("\n\n")
		sb.WriteString(indent(format(c), indentStep))
	}
	return sb.String()
}

// Parse reads one note document. parentID is inherited by the returned
// note when non-empty; nested children always inherit their parent's id.
//
// Errors wrap apperr.ErrFormat when the metadata block is incomplete or
// the id is missing. Children that fail to parse are skipped.
func Parse(data []byte, parentID string) (models.Note, error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return parseLines(strings.Split(text, "\n"), parentID)
}

func parseLines(lines []string, parentID string) (models.Note, error) {
	open := -1
	for i, l := range lines {
		if isDelim(l) {
			open = i
			break
		}
	}
	if open < 0 {
		return models.Note{}, fmt.Errorf("%w: missing metadata block", apperr.ErrFormat)
	}
	lines = dedent(lines[open:], indentOf(lines[open]))

	closing := -1
	for i := 1; i < len(lines); i++ {
		if isDelim(lines[i]) {
			closing = i
			break
		}
	}
	if closing < 0 {
		return models.Note{}, fmt.Errorf("%w: unterminated metadata block", apperr.ErrFormat)
	}

	note := parseMeta(lines[1:closing])
	if note.ID == "" {
		return models.Note{}, fmt.Errorf("%w: missing id", apperr.ErrFormat)
	}
	if parentID != "" {
		note.ParentID = parentID
	}

	rest := lines[closing+1:]
	boundary := len(rest)
	for i := range rest {
		if _, ok := blockAt(rest, i); ok {
			boundary = i
			break
		}
	}
	note.Content = strings.TrimSpace(strings.Join(rest[:boundary], "\n"))
	if boundary < len(rest) {
		note.Children = parseChildren(rest[boundary:], note.ID)
	}
	return note, nil
}

// parseChildren splits lines (which start at a child block) into sibling
// spans and parses each one. Siblings share the indentation of the first
// block; deeper blocks belong to the preceding sibling.
func parseChildren(lines []string, parentID string) []models.Note {
	level := indentOf(lines[0])
	starts := []int{0}
	for i := 1; i < len(lines); i++ {
		if indentOf(lines[i]) != level {
			continue
		}
		if _, ok := blockAt(lines, i); ok {
			starts = append(starts, i)
		}
	}

	var children []models.Note
	for k, start := range starts {
		end := len(lines)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		child, err := parseLines(lines[start:end], parentID)
		if err != nil {
			slog.Debug("parser: skipping child block",
				slog.String("parent_id", parentID),
				slog.String("error", err.Error()))
			continue
		}
		children = append(children, child)
	}
	return children
}

// blockAt reports whether lines[i] opens a nested note block. A "---"
// line only counts when the line before it is blank (or it is the first
// line), a closing "---" at the same indentation follows, and the lines
// in between carry an id key. Anything else is body text, which keeps
// markdown horizontal rules inside bodies intact.
func blockAt(lines []string, i int) (closing int, ok bool) {
	if !isDelim(lines[i]) {
		return 0, false
	}
	if i > 0 && strings.TrimSpace(lines[i-1]) != "" {
		return 0, false
	}
	level := indentOf(lines[i])
	hasID := false
	for j := i + 1; j < len(lines); j++ {
		if isDelim(lines[j]) {
			if indentOf(lines[j]) != level || !hasID {
				return 0, false
			}
			return j, true
		}
		if key, _, found := strings.Cut(strings.TrimSpace(lines[j]), ":"); found && strings.TrimSpace(key) == "id" {
			hasID = true
		}
	}
	return 0, false
}

// parseMeta extracts the known keys. Unknown keys are ignored and
// malformed values fall back to their zero value.
func parseMeta(lines []string) models.Note {
	var n models.Note
	for _, line := range lines {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "id":
			n.ID = value
		case "parent_id":
			n.ParentID = value
		case "title":
			n.Title = value
		case "is_task":
			n.IsTask, _ = strconv.ParseBool(value)
		case "is_done":
			n.IsDone, _ = strconv.ParseBool(value)
		case "pomodoro_count":
			if c, err := strconv.Atoi(value); err == nil && c > 0 {
				n.PomodoroCount = c
			}
		case "created_at":
			n.CreatedAt, _ = strconv.ParseInt(value, 10, 64)
		case "updated_at":
			n.UpdatedAt, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return n
}

// Tags returns the distinct inline #tags of a note body in order of
// first appearance.
func Tags(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

func isDelim(line string) bool {
	return strings.TrimSpace(line) == delim
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func indent(text string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}

// dedent strips up to n leading spaces from every line.
func dedent(lines []string, n int) []string {
	if n == 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		k := 0
		for k < n && k < len(l) && l[k] == ' ' {
			k++
		}
		out[i] = l[k:]
	}
	return out
}

func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
