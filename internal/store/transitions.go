package store

import "github.com/lsh-sh/lsh/internal/job"

// legalTransitions is the status transition table. Any transition
// not listed here is rejected with InvalidState.
var legalTransitions = map[job.Status]map[job.Status]bool{
	job.StatusCreated: {
		job.StatusRunning: true,
		job.StatusKilled:  true,
	},
	job.StatusRunning: {
		job.StatusPaused:    true,
		job.StatusStopped:   true,
		job.StatusCompleted: true,
		job.StatusFailed:    true,
		job.StatusKilled:    true,
	},
	job.StatusPaused: {
		job.StatusRunning: true,
		job.StatusKilled:  true,
		job.StatusStopped: true,
	},
	job.StatusStopped: {
		job.StatusRunning: true, // restart path
	},
}

// LegalTransition reports whether from -> to is a permitted status
// transition. "removed" is handled separately by Store.Remove, which
// deletes the record outright rather than moving it to a status.
func LegalTransition(from, to job.Status) bool {
	if from == to {
		return false
	}
	next, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// removableTerminal reports whether a job in this status may be
// removed outright (terminal states only).
func removableTerminal(s job.Status) bool {
	return s.Terminal()
}
