package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lsh-sh/lsh/internal/daemonconfig"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/store"
)

func newTestDaemon(t *testing.T) (*Daemon, context.Context, context.CancelFunc) {
	t.Helper()
	cfg := daemonconfig.DefaultConfig()
	cfg.Persistence.Path = filepath.Join(t.TempDir(), "jobs.json")
	cfg.Scheduler.MinIntervalMs = 10
	cfg.Scheduler.DueBufferMs = 5
	cfg.GracePeriodMs = 200
	d := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	waitForPhase(t, d, PhaseReady)
	return d, ctx, cancel
}

func waitForPhase(t *testing.T, d *Daemon, want Phase) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if d.Phase() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for phase %s, have %s", want, d.Phase())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCreateStartCompletesJob(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	j, err := d.CreateJob(job.Spec{Command: "echo hello"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if j.Status != job.StatusCreated {
		t.Fatalf("want created status, got %s", j.Status)
	}

	if _, err := d.StartJob(context.Background(), j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		got, err := d.GetJob(j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status == job.StatusCompleted {
			if got.Stdout != "hello\n" {
				t.Fatalf("want stdout %q, got %q", "hello\n", got.Stdout)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for completion, status=%s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartJobNotFound(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	if _, err := d.StartJob(context.Background(), "job_does_not_exist"); err == nil {
		t.Fatal("want error starting an unknown job")
	}
}

func TestStartJobAlreadyRunningConflict(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	j, err := d.CreateJob(job.Spec{Command: "sleep 1"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := d.StartJob(context.Background(), j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if _, err := d.StartJob(context.Background(), j.ID); err == nil {
		t.Fatal("want conflict starting an already-running job")
	}
}

func TestListJobsFiltersByStatus(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	if _, err := d.CreateJob(job.Spec{Command: "echo one"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := d.CreateJob(job.Spec{Command: "echo two"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	jobs, err := d.ListJobs(store.Filter{Status: []job.Status{job.StatusCreated}})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("want 2 created jobs, got %d", len(jobs))
	}
}

func TestRemoveJobRequiresForceWhenRunning(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	j, err := d.CreateJob(job.Spec{Command: "sleep 2"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := d.StartJob(context.Background(), j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	if _, err := d.RemoveJob(context.Background(), j.ID, false); err == nil {
		t.Fatal("want error removing a running job without force")
	}
	if _, err := d.RemoveJob(context.Background(), j.ID, true); err != nil {
		t.Fatalf("RemoveJob force: %v", err)
	}
}

func TestScheduledJobFiresAndCompletes(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	j, err := d.CreateJob(job.Spec{
		Command:  "echo scheduled",
		Schedule: &job.Schedule{IntervalMs: 30},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		got, err := d.GetJob(j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status == job.StatusCompleted {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for scheduled dispatch, status=%s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestGetStatsCountsJobs(t *testing.T) {
	d, _, cancel := newTestDaemon(t)
	defer cancel()

	if _, err := d.CreateJob(job.Spec{Command: "echo a"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	stats := d.GetStats()
	if stats.Total != 1 {
		t.Fatalf("want total 1, got %d", stats.Total)
	}
}

func TestDrainStopsRunningJobsAndTransitionsToStopped(t *testing.T) {
	d, _, cancel := newTestDaemon(t)

	j, err := d.CreateJob(job.Spec{Command: "sleep 5"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := d.StartJob(context.Background(), j.ID); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	cancel()
	deadline := time.After(3 * time.Second)
	for d.Phase() != PhaseStopped {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for daemon to stop, phase=%s", d.Phase())
		case <-time.After(10 * time.Millisecond):
		}
	}
	got, err := d.GetJob(j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status.Live() {
		t.Fatalf("want job no longer running after drain, status=%s", got.Status)
	}
}
