package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/lsh-sh/lsh/internal/events"
	"github.com/lsh-sh/lsh/internal/job"
)

func waitForDue(t *testing.T, ch <-chan events.Event, jobID string, within time.Duration) events.Event {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == events.KindDue && ev.JobID == jobID {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for job.due on %s", jobID)
		}
	}
}

func TestSchedulerFiresIntervalJob(t *testing.T) {
	bus := events.NewBus(nil)
	sub, cancel := bus.Subscribe()
	defer cancel()

	s := New(Config{MinInterval: 10 * time.Millisecond, DueBuffer: 5 * time.Millisecond}, bus, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.Run(ctx)

	j := &job.Job{ID: "job_1", Name: "ticker", Schedule: &job.Schedule{IntervalMs: 50}}
	s.Add(j)

	waitForDue(t, sub, "job_1", 2*time.Second)
	waitForDue(t, sub, "job_1", 2*time.Second)
}

func TestSchedulerRemoveStopsFiring(t *testing.T) {
	bus := events.NewBus(nil)
	sub, cancel := bus.Subscribe()
	defer cancel()

	s := New(Config{MinInterval: 10 * time.Millisecond, DueBuffer: 5 * time.Millisecond}, bus, nil)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go s.Run(ctx)

	j := &job.Job{ID: "job_2", Name: "once", Schedule: &job.Schedule{IntervalMs: 30}}
	s.Add(j)
	waitForDue(t, sub, "job_2", 2*time.Second)
	s.Remove("job_2")

	select {
	case ev := <-sub:
		if ev.Kind == events.KindDue && ev.JobID == "job_2" {
			t.Fatal("want no further due events after Remove")
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSchedulerAddNoScheduleIsNoop(t *testing.T) {
	s := New(Config{}, nil, nil)
	s.Add(&job.Job{ID: "job_3"})
	if s.Len() != 0 {
		t.Fatalf("want 0 entries for a job with no schedule, got %d", s.Len())
	}
}

func TestSchedulerUpdateReplacesEntry(t *testing.T) {
	s := New(Config{}, nil, nil)
	j := &job.Job{ID: "job_4", Schedule: &job.Schedule{IntervalMs: 60000}}
	s.Add(j)
	if s.Len() != 1 {
		t.Fatalf("want 1 entry, got %d", s.Len())
	}
	s.Update(j)
	if s.Len() != 1 {
		t.Fatalf("want still 1 entry after Update, got %d", s.Len())
	}
}

func TestCronDedupWithinSameMinute(t *testing.T) {
	s := New(Config{}, nil, nil)
	now := time.Now().Truncate(time.Minute)
	j := &job.Job{ID: "job_5", Schedule: &job.Schedule{Cron: "* * * * *"}}

	e := &entry{jobID: j.ID, nextRun: now.UnixMilli(), snapshot: j}
	s.markFired(e)
	if !s.alreadyFiredThisMinute(e) {
		t.Fatal("want alreadyFiredThisMinute true for the same minute bucket")
	}
	later := &entry{jobID: j.ID, nextRun: now.Add(time.Minute).UnixMilli(), snapshot: j}
	if s.alreadyFiredThisMinute(later) {
		t.Fatal("want alreadyFiredThisMinute false for the next minute bucket")
	}
}
