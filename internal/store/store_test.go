package store

import (
	"context"
	"testing"
	"time"

	"github.com/lsh-sh/lsh/internal/events"
	"github.com/lsh-sh/lsh/internal/job"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(nil, events.NewBus(nil))
}

func mustCreate(t *testing.T, s *Store, spec job.Spec) *job.Job {
	t.Helper()
	j, err := s.Create(spec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return j
}

func TestLegalTransition(t *testing.T) {
	cases := []struct {
		from, to job.Status
		want     bool
	}{
		{job.StatusCreated, job.StatusRunning, true},
		{job.StatusCreated, job.StatusKilled, true},
		{job.StatusCreated, job.StatusStopped, false},
		{job.StatusRunning, job.StatusPaused, true},
		{job.StatusRunning, job.StatusCompleted, true},
		{job.StatusPaused, job.StatusRunning, true},
		{job.StatusPaused, job.StatusCompleted, false},
		{job.StatusStopped, job.StatusRunning, true},
		{job.StatusStopped, job.StatusPaused, false},
		{job.StatusCompleted, job.StatusRunning, false},
		{job.StatusRunning, job.StatusRunning, false},
	}
	for _, c := range cases {
		if got := LegalTransition(c.from, c.to); got != c.want {
			t.Errorf("LegalTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	s := newTestStore(t)
	j := mustCreate(t, s, job.Spec{Command: "echo hi"})

	if _, err := s.UpdateStatus(j.ID, job.StatusPaused, job.StatusExtras{}); err == nil {
		t.Fatal("want error transitioning created -> paused, got nil")
	}

	got, _ := s.Get(j.ID)
	if got.Status != job.StatusCreated {
		t.Fatalf("status should be unchanged after rejected transition, got %s", got.Status)
	}
}

func TestUpdateStatusAppliesLegalTransition(t *testing.T) {
	s := newTestStore(t)
	j := mustCreate(t, s, job.Spec{Command: "echo hi"})

	updated, err := s.UpdateStatus(j.ID, job.StatusRunning, job.StatusExtras{PID: 42})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != job.StatusRunning || updated.PID != 42 {
		t.Fatalf("want running with pid 42, got %+v", updated)
	}
}

func TestFilterMatchesTypeTagsAndName(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, job.Spec{Name: "build-web", Command: "make web", Type: job.TypeSystem, Tags: []string{"ci", "web"}})
	mustCreate(t, s, job.Spec{Name: "build-api", Command: "make api", Type: job.TypeSystem, Tags: []string{"ci", "api"}})
	mustCreate(t, s, job.Spec{Name: "nightly-backup", Command: "backup.sh", Type: job.TypeShell, Tags: []string{"cron"}})

	out, err := s.List(Filter{Tags: []string{"ci", "web"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].Name != "build-web" {
		t.Fatalf("want only build-web for tags [ci web], got %+v", out)
	}

	out, err = s.List(Filter{NameRegex: "^build-"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want 2 jobs matching ^build-, got %d", len(out))
	}

	out, err = s.List(Filter{Type: []job.Type{job.TypeShell}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 || out[0].Name != "nightly-backup" {
		t.Fatalf("want only nightly-backup for type shell, got %+v", out)
	}
}

func TestFilterMatchesCreatedBeforeAfter(t *testing.T) {
	s := newTestStore(t)
	j := mustCreate(t, s, job.Spec{Command: "echo hi"})

	past := j.CreatedAt.Add(-time.Hour)
	future := j.CreatedAt.Add(time.Hour)

	out, err := s.List(Filter{CreatedAfter: past, CreatedBefore: future})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("want job within [past, future) window, got %d", len(out))
	}

	out, err = s.List(Filter{CreatedAfter: future})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("want no job created after future, got %d", len(out))
	}
}

func TestFilterInvalidRegexReturnsError(t *testing.T) {
	s := newTestStore(t)
	mustCreate(t, s, job.Spec{Command: "echo hi"})

	if _, err := s.List(Filter{NameRegex: "("}); err == nil {
		t.Fatal("want error for invalid regex, got nil")
	}
}

// fakeKiller simulates the supervisor side of a forced removal: Kill
// is asynchronous, and the eventual exit is reported back through the
// same UpdateStatus path the real supervisor uses.
type fakeKiller struct {
	store      *Store
	exitStatus job.Status
}

func (k *fakeKiller) Kill(ctx context.Context, id string) error {
	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = k.store.UpdateStatus(id, k.exitStatus, job.StatusExtras{})
	}()
	return nil
}

func TestRemoveForceOnRunningJobWaitsForExit(t *testing.T) {
	s := newTestStore(t)
	j := mustCreate(t, s, job.Spec{Command: "sleep 100"})
	if _, err := s.UpdateStatus(j.ID, job.StatusRunning, job.StatusExtras{}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	s.SetKiller(&fakeKiller{store: s, exitStatus: job.StatusKilled})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Remove(ctx, j.ID, true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := s.Get(j.ID); ok {
		t.Fatal("job should be gone after forced removal completes")
	}
}

func TestRemoveForceOnNonLiveStatusDoesNotWait(t *testing.T) {
	for _, status := range []job.Status{job.StatusCreated, job.StatusStopped, job.StatusCompleted, job.StatusFailed} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			s := newTestStore(t)
			j := mustCreate(t, s, job.Spec{Command: "echo hi"})

			switch status {
			case job.StatusCreated:
				// already created
			case job.StatusStopped:
				if _, err := s.UpdateStatus(j.ID, job.StatusRunning, job.StatusExtras{}); err != nil {
					t.Fatalf("UpdateStatus to running: %v", err)
				}
				if _, err := s.UpdateStatus(j.ID, job.StatusStopped, job.StatusExtras{}); err != nil {
					t.Fatalf("UpdateStatus to stopped: %v", err)
				}
			case job.StatusCompleted, job.StatusFailed:
				if _, err := s.UpdateStatus(j.ID, job.StatusRunning, job.StatusExtras{}); err != nil {
					t.Fatalf("UpdateStatus to running: %v", err)
				}
				if _, err := s.UpdateStatus(j.ID, status, job.StatusExtras{}); err != nil {
					t.Fatalf("UpdateStatus to %s: %v", status, err)
				}
			}

			// No killer wired at all: if Remove tried to wait on an
			// exit event here it would either block forever or fail
			// with "no killer wired", not return success immediately.
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := s.Remove(ctx, j.ID, true); err != nil {
				t.Fatalf("Remove on %s job should not block or error, got %v", status, err)
			}
			if _, ok := s.Get(j.ID); ok {
				t.Fatalf("job should be removed immediately from status %s", status)
			}
		})
	}
}

func TestRemoveWithoutForceOnLiveJobFails(t *testing.T) {
	s := newTestStore(t)
	j := mustCreate(t, s, job.Spec{Command: "sleep 100"})
	if _, err := s.UpdateStatus(j.ID, job.StatusRunning, job.StatusExtras{}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if err := s.Remove(context.Background(), j.ID, false); err == nil {
		t.Fatal("want error removing a running job without force")
	}
	if _, ok := s.Get(j.ID); !ok {
		t.Fatal("job should still exist after rejected removal")
	}
}

func TestRemoveUnknownJobReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Remove(context.Background(), "job_does_not_exist", true); err == nil {
		t.Fatal("want not-found error for unknown id")
	}
}
