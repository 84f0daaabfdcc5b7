package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tomatxt/internal/checkbox"
	"github.com/starford/tomatxt/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List root notes
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list notes", "", err)
		return
	}
	if items == nil {
		items = []NotePreview{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a root note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get note", id, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new root note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		writeError(w, "create note", "", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// CreateChild handles POST /api/notes/{id}/children.
//
//	@Summary		Create a note nested under another note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Parent note id"
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/children [post]
func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "id")
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.CreateChild(r.Context(), parentID, req.Title, req.Content)
	if err != nil {
		writeError(w, "create child", parentID, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace the title and content of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		NoteRequest	true	"Updated fields"
//	@Success		200		{object}	Note
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req NoteRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.Update(r.Context(), id, req.Title, req.Content)
	if err != nil {
		writeError(w, "update note", id, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// SetTask handles PUT /api/notes/{id}/task.
//
//	@Summary		Set the task flags of a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		TaskRequest	true	"Flags"
//	@Success		200		{object}	Note
//	@Security		BearerAuth
//	@Router			/notes/{id}/task [put]
func (h *Handler) SetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TaskRequest
	if !decode(w, r, &req) {
		return
	}
	note, err := h.svc.SetTask(r.Context(), id, req.IsTask, req.IsDone)
	if err != nil {
		writeError(w, "set task", id, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// IncrementPomodoro handles POST /api/notes/{id}/pomodoros.
func (h *Handler) IncrementPomodoro(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.IncrementPomodoro(r.Context(), id)
	if err != nil {
		writeError(w, "increment pomodoro", id, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note and its nested notes
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete note", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteCheckboxes handles GET /api/notes/{id}/checkboxes.
func (h *Handler) NoteCheckboxes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "note checkboxes", id, err)
		return
	}
	writeJSON(w, http.StatusOK, checkboxesResponse(note.Content))
}

// UpdateCheckbox handles PUT /api/notes/{id}/checkboxes.
//
//	@Summary		Check or uncheck a checkbox by its text
//	@Tags			checkboxes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Note id"
//	@Param			body	body		CheckboxRequest	true	"Checkbox"
//	@Success		200		{object}	Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/checkboxes [put]
func (h *Handler) UpdateCheckbox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CheckboxRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}
	note, err := h.svc.UpdateCheckbox(r.Context(), id, req.Text, req.Completed)
	if err != nil {
		writeError(w, "update checkbox", id, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ParseCheckboxes handles POST /api/checkboxes/parse.
func (h *Handler) ParseCheckboxes(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, checkboxesResponse(req.Content))
}

func checkboxesResponse(content string) CheckboxesResponse {
	positioned := checkbox.ParseWithPositions(content)
	if positioned == nil {
		positioned = []checkbox.Positioned{}
	}
	boxes := make([]checkbox.Checkbox, len(positioned))
	for i, p := range positioned {
		boxes[i] = p.Checkbox
	}
	return CheckboxesResponse{
		Checkboxes: positioned,
		Completed:  checkbox.CountCompleted(boxes),
		Total:      len(boxes),
		Progress:   checkbox.Progress(boxes),
	}
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes, nested ones included
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []noteservice.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Reload handles POST /api/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ReloadAll(r.Context())
	if err != nil {
		writeError(w, "reload", "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"roots": len(notes)})
}
