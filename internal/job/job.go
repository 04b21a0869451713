// Package job defines the job record, its lifecycle statuses, and the
// invocation types the daemon knows how to spawn. The types here are
// plain data: no live process handles, no timers. Those belong to the
// supervisor, keyed by job id.
package job

import "time"

// Status is a closed set of lifecycle states. Transitions between
// them are validated centrally; see store.LegalTransition.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Terminal reports whether no further transition is possible except
// removal.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusKilled:
		return true
	default:
		return false
	}
}

// Live reports whether a job in this status owns a live process handle.
func (s Status) Live() bool {
	return s == StatusRunning || s == StatusPaused
}

// Type selects how the supervisor spawns the job.
type Type string

const (
	// TypeShell routes the command through the system shell (`$SHELL -c`
	// on Unix, falling back to /bin/sh; `%COMSPEC% /C` on Windows),
	// ignoring Argv.
	TypeShell Type = "shell"
	// TypeSystem tokenizes Command on whitespace to obtain the program
	// and its initial arguments, appending Argv.
	TypeSystem Type = "system"
	// TypeScheduled behaves like TypeSystem but is expected to carry a
	// Schedule and is driven by the scheduler rather than a direct
	// StartJob call.
	TypeScheduled Type = "scheduled"
	// TypeService behaves like TypeSystem; the distinction is purely
	// informational (long-running vs. one-shot intent).
	TypeService Type = "service"
)

// Schedule drives the priority-queue scheduler. Cron, when set, is the
// source of truth; otherwise IntervalMs plus the last fire time
// determines the next run.
type Schedule struct {
	Cron       string     `json:"cron,omitempty" yaml:"cron,omitempty"`
	IntervalMs int64      `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty" yaml:"next_run,omitempty"`
}

// Clone returns a deep copy so callers can't mutate a stored schedule
// through a snapshot.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	out := *s
	if s.NextRun != nil {
		t := *s.NextRun
		out.NextRun = &t
	}
	return &out
}

// Job is the full record for a managed unit of work. The store is the
// sole owner of these records; the supervisor and scheduler receive
// snapshots (via Clone) and report back through status updates and
// events, never by mutating a Job they were handed.
type Job struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Command string            `json:"command"`
	Argv    []string          `json:"argv,omitempty"`
	Type    Type              `json:"type"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	User    string            `json:"user,omitempty"`

	Schedule  *Schedule `json:"schedule,omitempty"`
	Priority  int       `json:"priority"`
	TimeoutMs int64     `json:"timeout_ms,omitempty"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	PID      int    `json:"pid,omitempty"`
	PPID     int    `json:"ppid,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	LogFile  string `json:"log_file,omitempty"`

	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	MaxMemory   int64    `json:"max_memory,omitempty"`
	MaxCPU      float64  `json:"max_cpu,omitempty"`
}

// Clone returns a deep copy suitable for handing outside the store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Argv = append([]string(nil), j.Argv...)
	out.Tags = append([]string(nil), j.Tags...)
	if j.Env != nil {
		out.Env = make(map[string]string, len(j.Env))
		for k, v := range j.Env {
			out.Env[k] = v
		}
	}
	out.Schedule = j.Schedule.Clone()
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.ExitCode != nil {
		v := *j.ExitCode
		out.ExitCode = &v
	}
	return &out
}

// Spec is the input to Store.Create: everything a caller may supply
// when defining a new job. Fields left zero take Store.Create's
// defaults (an empty Type becomes TypeSystem, an empty Name mirrors
// the allocated ID).
type Spec struct {
	ID          string
	Name        string
	Command     string
	Argv        []string
	Type        Type
	Cwd         string
	Env         map[string]string
	User        string
	Schedule    *Schedule
	Priority    int
	TimeoutMs   int64
	Tags        []string
	Description string
	LogFile     string
	MaxMemory   int64
	MaxCPU      float64
}

// Patch carries the mutable metadata fields Store.Update accepts.
// A nil pointer field means "leave unchanged".
type Patch struct {
	Name        *string
	Priority    *int
	MaxMemory   *int64
	MaxCPU      *float64
	TimeoutMs   *int64
	Tags        []string
	Description *string
	Schedule    *Schedule
}

// StatusExtras carries the fields that accompany a status transition
// (pid on start, exit code and completion time on exit, and so on).
// Only the fields relevant to the transition being applied are read.
type StatusExtras struct {
	PID         int
	ExitCode    *int
	StartedAt   *time.Time
	CompletedAt *time.Time
	Stdout      *string
	Stderr      *string
}
