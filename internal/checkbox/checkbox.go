// Package checkbox recognizes and rewrites the "- [ ] text" task syntax
// embedded in note bodies.
package checkbox

import (
	"strings"
	"unicode/utf8"
)

// Checkbox is a view over one checkbox line of a note body.
type Checkbox struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Positioned is a Checkbox together with its 0-based line index.
type Positioned struct {
	Checkbox
	Line int `json:"line"`
}

// ParseLine recognizes a single checkbox line. Accepted forms are
// "- [ ] text", "* [x] text" and the double-dash "- [ ] - text", with
// optional whitespace around the marker and bracket.
func ParseLine(line string) (Checkbox, bool) {
	trimmed := strings.TrimSpace(line)

	var rest string
	switch {
	case strings.HasPrefix(trimmed, "-"):
		rest = trimmed[1:]
	case strings.HasPrefix(trimmed, "*"):
		rest = trimmed[1:]
	default:
		return Checkbox{}, false
	}

	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "[") {
		return Checkbox{}, false
	}
	inner, after, ok := strings.Cut(rest[1:], "]")
	if !ok || utf8.RuneCountInString(inner) != 1 {
		return Checkbox{}, false
	}

	text := strings.TrimLeft(after, " \t")
	if strings.HasPrefix(text, "-") {
		text = strings.TrimLeft(text[1:], " \t")
	}
	if text == "" {
		return Checkbox{}, false
	}

	return Checkbox{
		Text:      text,
		Completed: inner == "x" || inner == "X",
	}, true
}

// Parse returns the checkboxes of content in line order.
func Parse(content string) []Checkbox {
	var out []Checkbox
	for _, line := range lines(content) {
		if cb, ok := ParseLine(line); ok {
			out = append(out, cb)
		}
	}
	return out
}

// ParseWithPositions is Parse with the line index of every match.
func ParseWithPositions(content string) []Positioned {
	var out []Positioned
	for i, line := range lines(content) {
		if cb, ok := ParseLine(line); ok {
			out = append(out, Positioned{Checkbox: cb, Line: i})
		}
	}
	return out
}

// Render writes cb in canonical "- [x] text" form.
func Render(cb Checkbox) string {
	state := " "
	if cb.Completed {
		state = "x"
	}
	return "- [" + state + "] " + cb.Text
}

// Format renders boxes one per line.
func Format(boxes []Checkbox) string {
	out := make([]string, len(boxes))
	for i, cb := range boxes {
		out[i] = Render(cb)
	}
	return strings.Join(out, "\n")
}

// UpdateInContent sets the completion state of every checkbox line whose
// text equals target. Rewritten lines use the canonical dash form; all
// other lines pass through untouched.
func UpdateInContent(content, target string, completed bool) string {
	ls := lines(content)
	changed := false
	for i, line := range ls {
		cb, ok := ParseLine(line)
		if !ok || cb.Text != target {
			continue
		}
		cb.Completed = completed
		ls[i] = Render(cb)
		changed = true
	}
	if !changed {
		return content
	}
	return strings.Join(ls, "\n")
}

// UpdateAt returns a copy of boxes with the entry at index set to
// completed. ok is false when index is out of range.
func UpdateAt(boxes []Checkbox, index int, completed bool) ([]Checkbox, bool) {
	if index < 0 || index >= len(boxes) {
		return nil, false
	}
	out := make([]Checkbox, len(boxes))
	copy(out, boxes)
	out[index].Completed = completed
	return out, true
}

// CountCompleted returns the number of completed boxes.
func CountCompleted(boxes []Checkbox) int {
	n := 0
	for _, cb := range boxes {
		if cb.Completed {
			n++
		}
	}
	return n
}

// Progress returns the completed share of boxes as a percentage.
func Progress(boxes []Checkbox) float64 {
	if len(boxes) == 0 {
		return 0
	}
	return float64(CountCompleted(boxes)) / float64(len(boxes)) * 100
}

// StripLines removes every line that starts with a checkbox marker
// ("- [" or "* [") and trims the result.
func StripLines(content string) string {
	var kept []string
	for _, line := range lines(content) {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "- [") || strings.HasPrefix(t, "* [") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func lines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}
