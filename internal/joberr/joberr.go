// Package joberr defines the typed error taxonomy surfaced by the job
// lifecycle subsystem (store, supervisor, scheduler, persistence).
// Client-facing operations return these so callers can distinguish
// "not found" from "invalid state" from "spawn failed" across the IPC
// boundary with errors.As, rather than matching on error strings.
package joberr

import "fmt"

// Kind classifies an error without binding it to a specific job or
// operation.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidSpec  Kind = "invalid_spec"
	KindSpawnFailed  Kind = "spawn_failed"
	KindIOError      Kind = "io_error"
	KindUnsupported  Kind = "unsupported"
	KindTimeout      Kind = "timeout"
)

// Error wraps an underlying cause with a Kind so it can be classified
// without string matching.
type Error struct {
	Kind  Kind
	JobID string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s: job %s: %s", e.Kind, e.JobID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, joberr.NotFound("")) work as a Kind
// comparison by matching on Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func new_(kind Kind, id, msg string, cause error) *Error {
	return &Error{Kind: kind, JobID: id, Msg: msg, Cause: cause}
}

// NotFound builds a KindNotFound error for the given job id.
func NotFound(id string) *Error {
	return new_(KindNotFound, id, "job not found", nil)
}

// InvalidState builds a KindInvalidState error describing an illegal
// transition or an operation not valid in the job's current status.
func InvalidState(id, msg string) *Error {
	return new_(KindInvalidState, id, msg, nil)
}

// InvalidSpec builds a KindInvalidSpec error for a malformed job
// specification (missing command, bad cron, out-of-range field).
func InvalidSpec(msg string) *Error {
	return new_(KindInvalidSpec, "", msg, nil)
}

// SpawnFailed builds a KindSpawnFailed error wrapping the OS error
// that prevented a child process from starting.
func SpawnFailed(id string, cause error) *Error {
	return new_(KindSpawnFailed, id, "failed to spawn process", cause)
}

// IOError builds a KindIOError error for a persistence or pipe
// failure.
func IOError(msg string, cause error) *Error {
	return new_(KindIOError, "", msg, cause)
}

// Unsupported builds a KindUnsupported error for an operation the
// host platform cannot perform (e.g. pause/resume without job-control
// signals).
func Unsupported(id, msg string) *Error {
	return new_(KindUnsupported, id, msg, nil)
}

// Timeout builds a KindTimeout error for a job killed after exceeding
// its configured timeout.
func Timeout(id string) *Error {
	return new_(KindTimeout, id, "killed after exceeding timeout", nil)
}
