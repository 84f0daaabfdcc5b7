package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tomatxt/internal/pomodoro"
)

var timerActions = map[string]func(pomodoro.State) pomodoro.State{
	"pause":       pomodoro.Pause,
	"resume":      pomodoro.Resume,
	"reset":       pomodoro.Reset,
	"start-work":  pomodoro.StartWork,
	"start-break": pomodoro.StartBreak,
}

// TimerHandler exposes the pomodoro timer.
type TimerHandler struct {
	timer *pomodoro.Timer
}

// NewTimerHandler creates a new TimerHandler.
func NewTimerHandler(t *pomodoro.Timer) *TimerHandler {
	return &TimerHandler{timer: t}
}

// Get handles GET /api/timer.
func (h *TimerHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.timer.State())
}

// Init handles POST /api/timer/init.
func (h *TimerHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req DurationsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.WorkMinutes <= 0 || req.BreakMinutes <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("work_minutes and break_minutes must be positive"))
		return
	}
	writeJSON(w, http.StatusOK, h.timer.Init(req.WorkMinutes, req.BreakMinutes))
}

// UpdateDurations handles PUT /api/timer/durations.
func (h *TimerHandler) UpdateDurations(w http.ResponseWriter, r *http.Request) {
	var req DurationsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.WorkMinutes < 0 || req.BreakMinutes < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("durations must not be negative"))
		return
	}
	state := h.timer.Apply(func(s pomodoro.State) pomodoro.State {
		if req.WorkMinutes > 0 {
			s = pomodoro.UpdateWorkDuration(s, req.WorkMinutes)
		}
		if req.BreakMinutes > 0 {
			s = pomodoro.UpdateBreakDuration(s, req.BreakMinutes)
		}
		return s
	})
	writeJSON(w, http.StatusOK, state)
}

// Action handles POST /api/timer/{action}.
func (h *TimerHandler) Action(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == "tick" {
		writeJSON(w, http.StatusOK, h.timer.Tick())
		return
	}
	fn, ok := timerActions[action]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("unknown timer action"))
		return
	}
	writeJSON(w, http.StatusOK, h.timer.Apply(fn))
}
