package api

import (
	"github.com/starford/tomatxt/internal/checkbox"
	"github.com/starford/tomatxt/internal/models"
	"github.com/starford/tomatxt/internal/noteservice"
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"- [ ] milk\nweekly shop"`
}

// TaskRequest is the request body for setting task flags.
type TaskRequest struct {
	IsTask bool `json:"is_task"`
	IsDone bool `json:"is_done"`
}

// CheckboxRequest is the request body for toggling a checkbox.
type CheckboxRequest struct {
	Text      string `json:"text" example:"milk" validate:"required"`
	Completed bool   `json:"completed"`
}

// ParseRequest is the request body for parsing free content.
type ParseRequest struct {
	Content string `json:"content"`
}

// DurationsRequest updates the pomodoro durations. Zero leaves a value
// unchanged.
type DurationsRequest struct {
	WorkMinutes  int `json:"work_minutes" example:"25"`
	BreakMinutes int `json:"break_minutes" example:"5"`
}

// Note is the full note response type (aliased from the domain layer).
type Note = models.Note

// NotePreview is a list item (aliased from the domain layer).
type NotePreview = models.NotePreview

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NotePreview `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// CheckboxesResponse describes the checkboxes of a note body.
type CheckboxesResponse struct {
	Checkboxes []checkbox.Positioned `json:"checkboxes" validate:"required"`
	Completed  int                   `json:"completed" example:"1"`
	Total      int                   `json:"total" example:"2"`
	Progress   float64               `json:"progress" example:"50"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []noteservice.SearchHit `json:"results" validate:"required"`
}
