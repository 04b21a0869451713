// Package supervisor owns every OS child process the daemon spawns,
// from Start to exit: piped stdio capture, timeout enforcement,
// signal forwarding, and exit-status reporting. It is adapted
// from the teacher's pkg/devclaw/sandbox executor, collapsed from a
// three-tier isolation model (none/restricted/container) down to the
// single "live OS process with piped stdio" contract this
// specification requires, and generalized from one-shot script
// execution to long-lived job supervision with pause/resume and
// per-job dedicated exit-handling goroutines.
package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/joberr"
)

// StatusUpdater is the store-side dependency the supervisor reports
// through. The exit-handling goroutine is the only writer of
// terminal-status fields for a given job id.
type StatusUpdater interface {
	UpdateStatus(id string, status job.Status, extras job.StatusExtras) (*job.Job, error)
	Get(id string) (*job.Job, bool)
}

// Config holds supervisor-wide defaults.
type Config struct {
	// MaxCaptureBytes bounds stdout/stderr capture per job. Zero uses
	// defaultCaptureBound.
	MaxCaptureBytes int
}

// Sample is the live snapshot MonitorJob returns.
type Sample struct {
	PID     int
	PPID    int
	CPUPct  float64
	MemPct  float64
	Elapsed time.Duration
	State   string
}

// handle is the supervision side of a job: the live process and its
// timers/buffers. Never persisted.
type handle struct {
	cmd          *exec.Cmd
	stdout       *captureBuffer
	stderr       *captureBuffer
	logFile      *os.File
	timeoutTimer *time.Timer
	startedAt    time.Time
	killReason   string
	mu           sync.Mutex
}

// Supervisor manages the set of live job processes.
type Supervisor struct {
	cfg     Config
	updater StatusUpdater
	logger  *slog.Logger

	mu      sync.Mutex
	handles map[string]*handle
}

// New constructs a Supervisor. updater is typically the job store.
func New(cfg Config, updater StatusUpdater, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:     cfg,
		updater: updater,
		logger:  logger.With("component", "supervisor"),
		handles: make(map[string]*handle),
	}
}

// Start spawns j's process.
func (s *Supervisor) Start(ctx context.Context, j *job.Job) error {
	program, args, err := resolveCommand(j)
	if err != nil {
		return err
	}

	cmd := exec.Command(program, args...)
	if j.Cwd != "" {
		cmd.Dir = j.Cwd
	}
	cmd.Env = mergedEnv(j.Env)
	setProcAttrs(cmd)

	h := &handle{
		stdout: newCaptureBuffer(s.cfg.MaxCaptureBytes),
		stderr: newCaptureBuffer(s.cfg.MaxCaptureBytes),
	}

	var logFile io.Writer
	if j.LogFile != "" {
		f, err := os.OpenFile(j.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.logger.Warn("supervisor: could not open log file, continuing without it",
				"id", j.ID, "log_file", j.LogFile, "error", err)
		} else {
			h.logFile = f
			logFile = f
		}
	}
	cmd.Stdout = teeWriter(h.stdout, logFile)
	cmd.Stderr = teeWriter(h.stderr, logFile)

	if err := cmd.Start(); err != nil {
		if h.logFile != nil {
			h.logFile.Close()
		}
		return joberr.SpawnFailed(j.ID, err)
	}
	h.cmd = cmd
	h.startedAt = time.Now()

	if j.Priority != 0 {
		if err := setPriority(cmd.Process.Pid, j.Priority); err != nil {
			s.logger.Warn("supervisor: failed to apply priority at spawn",
				"id", j.ID, "priority", j.Priority, "error", err)
		}
	}

	s.mu.Lock()
	s.handles[j.ID] = h
	s.mu.Unlock()

	if j.TimeoutMs > 0 {
		h.timeoutTimer = time.AfterFunc(time.Duration(j.TimeoutMs)*time.Millisecond, func() {
			h.mu.Lock()
			h.killReason = "timeout"
			h.mu.Unlock()
			_ = s.signalByID(j.ID, SignalKill)
		})
	}

	go s.wait(j.ID, h)

	s.logger.Info("supervisor: spawned job", "id", j.ID, "pid", cmd.Process.Pid, "program", program)
	return nil
}

// resolveCommand builds the program and argument list.
func resolveCommand(j *job.Job) (string, []string, error) {
	switch j.Type {
	case job.TypeShell:
		program, args := shellCommand(j.Command)
		return program, args, nil
	default:
		fields := strings.Fields(j.Command)
		if len(fields) == 0 {
			return "", nil, joberr.InvalidSpec("command must not be empty")
		}
		program := fields[0]
		args := append(append([]string(nil), fields[1:]...), j.Argv...)
		return program, args, nil
	}
}

func mergedEnv(jobEnv map[string]string) []string {
	env := os.Environ()
	for k, v := range jobEnv {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// wait is the dedicated per-job goroutine that owns exit reporting:
// it is the only writer of terminal-status fields for this job id.
func (s *Supervisor) wait(id string, h *handle) {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.timeoutTimer != nil {
		h.timeoutTimer.Stop()
	}
	killReason := h.killReason
	h.mu.Unlock()
	if h.logFile != nil {
		h.logFile.Close()
	}

	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()

	j, ok := s.updater.Get(id)
	if !ok {
		s.logger.Info("supervisor: job exited but is no longer known to the store", "id", id)
		return
	}
	if !j.Status.Live() {
		s.logger.Warn("supervisor: exit event for a job not running/paused, discarding",
			"id", id, "status", j.Status)
		return
	}

	exitCode, sig := exitResult(err)
	status := job.StatusFailed
	switch {
	case exitCode == 0 && sig == "":
		status = job.StatusCompleted
	case killReason == "timeout", sig == string(SignalKill):
		status = job.StatusKilled
	}

	now := time.Now()
	stdout := h.stdout.String()
	stderr := h.stderr.String()
	extras := job.StatusExtras{
		ExitCode:    &exitCode,
		CompletedAt: &now,
		Stdout:      &stdout,
		Stderr:      &stderr,
	}
	if _, err := s.updater.UpdateStatus(id, status, extras); err != nil {
		s.logger.Error("supervisor: failed to record job exit", "id", id, "error", err)
	}
}

// exitResult extracts the exit code and, if the process died from a
// signal, its name, from the error cmd.Wait returned.
func exitResult(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1, ""
	}
	return exitErr.ExitCode(), signalFromExitError(exitErr)
}

func (s *Supervisor) handleFor(id string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	return h, ok
}

func (s *Supervisor) signalByID(id string, sig Signal) error {
	h, ok := s.handleFor(id)
	if !ok {
		return nil // already gone: not an error
	}
	return sendSignal(h.cmd.Process.Pid, sig)
}

// Stop forwards sig (default SignalTerm) to the job's process. Idempotent:
// signaling an already-exited job is not an error.
func (s *Supervisor) Stop(ctx context.Context, id string, sig Signal) error {
	if sig == "" {
		sig = SignalTerm
	}
	return s.signalByID(id, sig)
}

// Kill is shorthand for Stop with the hard-kill signal.
func (s *Supervisor) Kill(ctx context.Context, id string) error {
	return s.signalByID(id, SignalKill)
}

// Pause suspends the job via the platform's job-control stop signal.
// Returns Unsupported on platforms without one.
func (s *Supervisor) Pause(ctx context.Context, id string) error {
	if !pauseSupported {
		return joberr.Unsupported(id, "pause/resume requires job-control signals not available on this platform")
	}
	return s.signalByID(id, SignalStop)
}

// Resume continues a paused job.
func (s *Supervisor) Resume(ctx context.Context, id string) error {
	if !pauseSupported {
		return joberr.Unsupported(id, "pause/resume requires job-control signals not available on this platform")
	}
	return s.signalByID(id, SignalCont)
}

// Renice applies a new priority to a live process. Best-effort: the
// caller treats failure as a warning, not an operation failure.
func (s *Supervisor) Renice(id string, priority int) error {
	h, ok := s.handleFor(id)
	if !ok {
		return joberr.NotFound(id)
	}
	return setPriority(h.cmd.Process.Pid, priority)
}

// Sample queries the live process for MonitorJob. Returns
// (nil, nil) if the process has already exited.
func (s *Supervisor) Sample(id string) (*Sample, error) {
	h, ok := s.handleFor(id)
	if !ok {
		return nil, nil
	}
	h.mu.Lock()
	startedAt := h.startedAt
	h.mu.Unlock()
	if h.cmd.Process == nil {
		return nil, nil
	}
	cpu, mem, state, err := sampleProcess(h.cmd.Process.Pid)
	if err != nil {
		return nil, nil
	}
	return &Sample{
		PID:     h.cmd.Process.Pid,
		PPID:    os.Getpid(),
		CPUPct:  cpu,
		MemPct:  mem,
		Elapsed: time.Since(startedAt),
		State:   state,
	}, nil
}

// CaptureSnapshot returns the current (not-yet-finalized) stdout and
// stderr for a still-running job, or ("", "", false) if it's not
// currently supervised.
func (s *Supervisor) CaptureSnapshot(id string) (stdout, stderr string, ok bool) {
	h, found := s.handleFor(id)
	if !found {
		return "", "", false
	}
	return h.stdout.String(), h.stderr.String(), true
}
