package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tomatxt/internal/noteservice"
	"github.com/starford/tomatxt/internal/pomodoro"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// timer, if non-nil, is exposed under /timer.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, timer *pomodoro.Timer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Nested notes and note fields.
	r.Post("/notes/{id}/children", h.CreateChild)
	r.Put("/notes/{id}/task", h.SetTask)
	r.Post("/notes/{id}/pomodoros", h.IncrementPomodoro)

	// Checkboxes.
	r.Get("/notes/{id}/checkboxes", h.NoteCheckboxes)
	r.Put("/notes/{id}/checkboxes", h.UpdateCheckbox)
	r.Post("/checkboxes/parse", h.ParseCheckboxes)

	r.Get("/search", h.Search)
	r.Post("/reload", h.Reload)

	if timer != nil {
		th := NewTimerHandler(timer)
		r.Get("/timer", th.Get)
		r.Post("/timer/init", th.Init)
		r.Put("/timer/durations", th.UpdateDurations)
		r.Post("/timer/{action}", th.Action)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
