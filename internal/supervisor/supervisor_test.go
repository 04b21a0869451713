package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lsh-sh/lsh/internal/job"
)

// fakeUpdater is a minimal StatusUpdater double that records every
// UpdateStatus call on a channel so tests can wait for the
// supervisor's exit-handling goroutine without polling.
type fakeUpdater struct {
	mu      sync.Mutex
	jobs    map[string]*job.Job
	updates chan job.Status
}

func newFakeUpdater(j *job.Job) *fakeUpdater {
	return &fakeUpdater{
		jobs:    map[string]*job.Job{j.ID: j},
		updates: make(chan job.Status, 8),
	}
}

func (f *fakeUpdater) Get(id string) (*job.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeUpdater) UpdateStatus(id string, status job.Status, extras job.StatusExtras) (*job.Job, error) {
	f.mu.Lock()
	j := f.jobs[id]
	j.Status = status
	if extras.ExitCode != nil {
		j.ExitCode = extras.ExitCode
	}
	if extras.Stdout != nil {
		j.Stdout = *extras.Stdout
	}
	if extras.Stderr != nil {
		j.Stderr = *extras.Stderr
	}
	f.mu.Unlock()
	f.updates <- status
	return j, nil
}

func waitForStatus(t *testing.T, u *fakeUpdater, want job.Status) {
	t.Helper()
	select {
	case got := <-u.updates:
		if got != want {
			t.Fatalf("want status %s, got %s", want, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for status %s", want)
	}
}

func TestStartEchoCompletes(t *testing.T) {
	j := &job.Job{ID: "job_1", Type: job.TypeShell, Command: "echo hello", Status: job.StatusRunning}
	u := newFakeUpdater(j)
	s := New(Config{}, u, nil)

	if err := s.Start(context.Background(), j); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, u, job.StatusCompleted)

	got, _ := u.Get(j.ID)
	if got.Stdout != "hello\n" {
		t.Fatalf("want stdout %q, got %q", "hello\n", got.Stdout)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Fatalf("want exit code 0, got %v", got.ExitCode)
	}
}

func TestStartFailingCommand(t *testing.T) {
	j := &job.Job{ID: "job_2", Type: job.TypeShell, Command: "exit 3", Status: job.StatusRunning}
	u := newFakeUpdater(j)
	s := New(Config{}, u, nil)

	if err := s.Start(context.Background(), j); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, u, job.StatusFailed)

	got, _ := u.Get(j.ID)
	if got.ExitCode == nil || *got.ExitCode != 3 {
		t.Fatalf("want exit code 3, got %v", got.ExitCode)
	}
}

func TestTimeoutKillsJob(t *testing.T) {
	j := &job.Job{ID: "job_3", Type: job.TypeShell, Command: "sleep 5", Status: job.StatusRunning, TimeoutMs: 200}
	u := newFakeUpdater(j)
	s := New(Config{}, u, nil)

	started := time.Now()
	if err := s.Start(context.Background(), j); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, u, job.StatusKilled)
	if elapsed := time.Since(started); elapsed < 200*time.Millisecond {
		t.Fatalf("killed too early: %v", elapsed)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	j := &job.Job{ID: "job_4", Type: job.TypeShell, Command: "echo hi", Status: job.StatusRunning}
	u := newFakeUpdater(j)
	s := New(Config{}, u, nil)

	if err := s.Start(context.Background(), j); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForStatus(t, u, job.StatusCompleted)

	if err := s.Stop(context.Background(), j.ID, SignalTerm); err != nil {
		t.Fatalf("Stop on exited job should not error, got %v", err)
	}
	if err := s.Stop(context.Background(), j.ID, SignalTerm); err != nil {
		t.Fatalf("second Stop should not error, got %v", err)
	}
}
