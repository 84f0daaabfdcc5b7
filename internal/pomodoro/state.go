// Package pomodoro implements the work/break countdown.
package pomodoro

// State is a snapshot of the countdown. Durations are in seconds.
type State struct {
	WorkDuration  int  `json:"work_duration"`
	BreakDuration int  `json:"break_duration"`
	Remaining     int  `json:"remaining"`
	IsBreak       bool `json:"is_break"`
	IsPaused      bool `json:"is_paused"`
}

// Init returns a running work phase for the given durations in minutes.
func Init(workMin, breakMin int) State {
	return State{
		WorkDuration:  toSeconds(workMin),
		BreakDuration: toSeconds(breakMin),
		Remaining:     toSeconds(workMin),
	}
}

// Tick counts down one second. Paused or finished states are returned
// unchanged.
func Tick(s State) State {
	if s.IsPaused || s.Remaining == 0 {
		return s
	}
	s.Remaining--
	return s
}

// Pause stops the countdown.
func Pause(s State) State {
	s.IsPaused = true
	return s
}

// Resume continues the countdown.
func Resume(s State) State {
	s.IsPaused = false
	return s
}

// Reset rewinds the current phase to its full duration and pauses.
func Reset(s State) State {
	if s.IsBreak {
		s.Remaining = s.BreakDuration
	} else {
		s.Remaining = s.WorkDuration
	}
	s.IsPaused = true
	return s
}

// StartWork begins a running work phase.
func StartWork(s State) State {
	s.IsBreak = false
	s.Remaining = s.WorkDuration
	s.IsPaused = false
	return s
}

// StartBreak begins a running break phase.
func StartBreak(s State) State {
	s.IsBreak = true
	s.Remaining = s.BreakDuration
	s.IsPaused = false
	return s
}

// UpdateWorkDuration sets the work duration in minutes. A running work
// phase restarts with the new duration.
func UpdateWorkDuration(s State, minutes int) State {
	s.WorkDuration = toSeconds(minutes)
	if !s.IsBreak {
		s.Remaining = s.WorkDuration
	}
	return s
}

// UpdateBreakDuration sets the break duration in minutes. A running
// break restarts with the new duration.
func UpdateBreakDuration(s State, minutes int) State {
	s.BreakDuration = toSeconds(minutes)
	if s.IsBreak {
		s.Remaining = s.BreakDuration
	}
	return s
}

// IsFinished reports whether the current phase has run out.
func IsFinished(s State) bool {
	return s.Remaining == 0
}

// Next switches to the other phase once the current one is finished.
func Next(s State) State {
	switch {
	case IsFinished(s) && !s.IsBreak:
		return StartBreak(s)
	case IsFinished(s) && s.IsBreak:
		return StartWork(s)
	default:
		return s
	}
}

func toSeconds(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes * 60
}
