package mcpserver

// NoteFormatContract describes the on-disk note format that LLM consumers
// should follow when they write note files by hand.
const NoteFormatContract = `# tomatxt Note Format Contract

Every note lives in one plain-text file named <id>.md inside the notes
directory. A root note owns its file; nested notes are stored inside it.

## Structure

` + "```" + `text
---
id: 1700000000-Groceries
is_task: false
is_done: false
pomodoro_count: 0
title: Groceries
created_at: 1700000000
updated_at: 1700000000
---

- [ ] milk
- [x] eggs
weekly shop

  ---
  id: 1700000100-Bakery
  parent_id: 1700000000-Groceries
  is_task: true
  is_done: false
  pomodoro_count: 1
  title: Bakery
  created_at: 1700000100
  updated_at: 1700000100
  ---

  - [ ] bread
` + "```" + `

## Rules

1. **The metadata block comes first.** It opens and closes with a line
   containing only ` + "`" + `---` + "`" + `. Keys are written as ` + "`" + `key: value` + "`" + `.
2. **` + "`" + `id` + "`" + ` is required.** Everything else falls back to a zero value.
3. **Timestamps** are whole seconds since the Unix epoch.
4. **Checkboxes** are lines of the form ` + "`" + `- [ ] text` + "`" + ` or ` + "`" + `- [x] text` + "`" + `
   (` + "`" + `*` + "`" + ` works instead of ` + "`" + `-` + "`" + `). The bracket holds exactly one character.
5. **Nested notes** start after a blank line and are indented two spaces
   per level. Their own metadata block is indented the same way.
6. **Tags** are ` + "`" + `#words` + "`" + ` inside the body; they are indexed for search.
7. **Encoding** is UTF-8 with a trailing newline.

Prefer the create/update tools over writing files directly: they keep ids
unique and timestamps monotonic.
`
