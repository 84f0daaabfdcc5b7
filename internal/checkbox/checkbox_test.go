package checkbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Checkbox
		ok   bool
	}{
		{"unchecked dash", "- [ ] Buy milk", Checkbox{Text: "Buy milk"}, true},
		{"checked star", "* [x] Done thing", Checkbox{Text: "Done thing", Completed: true}, true},
		{"uppercase X", "- [X] shout", Checkbox{Text: "shout", Completed: true}, true},
		{"other marker is open", "- [-] half", Checkbox{Text: "half"}, true},
		{"indented", "    - [ ] nested", Checkbox{Text: "nested"}, true},
		{"no space after marker", "-[ ] tight", Checkbox{Text: "tight"}, true},
		{"double dash", "- [ ] - dashed", Checkbox{Text: "dashed"}, true},
		{"multi rune bracket", "- [xx] bad", Checkbox{}, false},
		{"empty bracket", "- [] nothing", Checkbox{}, false},
		{"empty text", "- [ ] ", Checkbox{}, false},
		{"only double dash", "- [ ] - ", Checkbox{}, false},
		{"plain bullet", "- just a bullet", Checkbox{}, false},
		{"no bullet", "[ ] orphan", Checkbox{}, false},
		{"unclosed", "- [ missing", Checkbox{}, false},
		{"plain text", "hello", Checkbox{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_KeepsLineOrder(t *testing.T) {
	content := "intro\n- [ ] first\ntext\n* [x] second\n- [xx] skipped\n- [ ] third"

	got := Parse(content)

	require.Len(t, got, 3)
	assert.Equal(t, []Checkbox{
		{Text: "first"},
		{Text: "second", Completed: true},
		{Text: "third"},
	}, got)
}

func TestParse_Empty(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("no boxes here\nat all"))
}

func TestParseWithPositions(t *testing.T) {
	got := ParseWithPositions("a\n- [ ] one\nb\n- [x] two")

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Line)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, 3, got[1].Line)
	assert.True(t, got[1].Completed)
}

func TestUpdateInContent(t *testing.T) {
	content := "title\n* [ ] task1\n- [ ] task2\nfooter"

	got := UpdateInContent(content, "task1", true)

	assert.Equal(t, "title\n- [x] task1\n- [ ] task2\nfooter", got)
}

func TestUpdateInContent_Uncheck(t *testing.T) {
	got := UpdateInContent("- [x] done", "done", false)
	assert.Equal(t, "- [ ] done", got)
}

func TestUpdateInContent_AllMatchingLines(t *testing.T) {
	got := UpdateInContent("- [ ] dup\n- [ ] other\n- [ ] dup", "dup", true)
	assert.Equal(t, "- [x] dup\n- [ ] other\n- [x] dup", got)
}

func TestUpdateInContent_NoMatchUnchanged(t *testing.T) {
	content := "  * [ ] keep my style\nbody"
	assert.Equal(t, content, UpdateInContent(content, "missing", true))
}

func TestUpdateInContent_Idempotent(t *testing.T) {
	content := "x\n- [ ] a\n* [ ] b\n- [x] c"
	for _, target := range []string{"a", "b", "c", "zzz"} {
		for _, status := range []bool{true, false} {
			once := UpdateInContent(content, target, status)
			twice := UpdateInContent(once, target, status)
			assert.Equal(t, once, twice, "target=%s status=%v", target, status)
		}
	}
}

func TestFormat(t *testing.T) {
	got := Format([]Checkbox{{Text: "a", Completed: true}, {Text: "b"}})
	assert.Equal(t, "- [x] a\n- [ ] b", got)
	assert.Equal(t, Parse(got), []Checkbox{{Text: "a", Completed: true}, {Text: "b"}})
}

func TestUpdateAt(t *testing.T) {
	boxes := []Checkbox{{Text: "a"}, {Text: "b"}}

	got, ok := UpdateAt(boxes, 1, true)
	require.True(t, ok)
	assert.True(t, got[1].Completed)
	assert.False(t, boxes[1].Completed, "input must not be mutated")

	_, ok = UpdateAt(boxes, 2, true)
	assert.False(t, ok)
	_, ok = UpdateAt(boxes, -1, true)
	assert.False(t, ok)
}

func TestProgress(t *testing.T) {
	assert.Zero(t, Progress(nil))
	boxes := []Checkbox{{Completed: true}, {}, {Completed: true}, {}}
	assert.Equal(t, 2, CountCompleted(boxes))
	assert.InDelta(t, 50.0, Progress(boxes), 0.0001)
}

func TestStripLines(t *testing.T) {
	assert.Equal(t, "body", StripLines("- [ ] task1\nbody"))
	assert.Equal(t, "a\nb", StripLines(" a\n* [x] gone\nb\n  - [ ] gone too\n"))
	assert.Equal(t, "", StripLines("- [ ] only"))
}
