package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lsh-sh/lsh/internal/job"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	w := NewWriter(path)

	completedAt := time.Now().Add(-time.Minute)
	exit := 0
	jobs := []*job.Job{
		{
			ID:          "job_1",
			Name:        "echo",
			Command:     "echo hello",
			Type:        job.TypeShell,
			Status:      job.StatusCompleted,
			CreatedAt:   completedAt.Add(-time.Second),
			CompletedAt: &completedAt,
			ExitCode:    &exit,
		},
	}

	if err := w.Save(jobs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Fatalf("want mode %o, got %o", FileMode, perm)
	}

	loaded, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "job_1" || loaded[0].Status != job.StatusCompleted {
		t.Fatalf("unexpected loaded jobs: %+v", loaded)
	}
}

func TestLoadNormalizesRunningToStopped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	w := NewWriter(path)

	if err := w.Save([]*job.Job{
		{ID: "job_1", Command: "sleep 100", Status: job.StatusRunning, PID: 4242},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("want 1 job, got %d", len(loaded))
	}
	if loaded[0].Status != job.StatusStopped {
		t.Fatalf("want stopped, got %s", loaded[0].Status)
	}
	if loaded[0].PID != 4242 {
		t.Fatalf("pid should be preserved as stale history, got %d", loaded[0].PID)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	w := NewWriter(filepath.Join(t.TempDir(), "does-not-exist.json"))
	loaded, err := w.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("want no jobs, got %d", len(loaded))
	}
}

func TestLoadMalformedFileIsError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w := NewWriter(path)
	if _, err := w.Load(); err == nil {
		t.Fatal("want error for malformed snapshot, got nil")
	}
}
