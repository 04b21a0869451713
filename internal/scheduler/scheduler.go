// Package scheduler implements the priority-queue scheduler: a custom
// min-heap keyed by next-run timestamp, deliberately not a wrapper
// around a cron library. Linear scanning for the next due job is
// avoided; every add/remove/update here is O(log n) via heap.go's
// id-indexed binary heap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lsh-sh/lsh/internal/events"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/metrics"
)

// Defaults for the tick cadence.
const (
	DefaultMinInterval = 100 * time.Millisecond
	DefaultMaxInterval = 60 * time.Second
	DefaultDueBuffer   = 50 * time.Millisecond
)

// Config tunes the tick loop's wakeup cadence.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	DueBuffer   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.DueBuffer <= 0 {
		c.DueBuffer = DefaultDueBuffer
	}
	return c
}

// Scheduler owns the heap of scheduled jobs and the tick loop that
// fires them.
type Scheduler struct {
	cfg     Config
	logger  *slog.Logger
	bus     *events.Bus
	metrics metrics.SchedulerMetrics

	mu              sync.Mutex
	pq              *priorityQueue
	lastFiredMinute map[string]int64

	timer *time.Timer
	wake  chan struct{}
}

// New constructs a Scheduler. Run must be started in its own
// goroutine to actually fire due jobs.
func New(cfg Config, bus *events.Bus, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:             cfg.withDefaults(),
		logger:          logger.With("component", "scheduler"),
		bus:             bus,
		pq:              newPriorityQueue(),
		lastFiredMinute: make(map[string]int64),
		timer:           time.NewTimer(cfg.withDefaults().MaxInterval),
		wake:            make(chan struct{}, 1),
	}
}

// Metrics returns a point-in-time snapshot of the scheduler's
// counters and gauges.
func (s *Scheduler) Metrics() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// nextRunFor computes j's next fire time. useProvidedNextRun is true
// only on first insertion of an interval schedule, honoring an
// explicit (possibly past) schedule.next_run; cron jobs and
// re-enqueues after firing always compute from `from`.
func nextRunFor(j *job.Job, from time.Time, useProvidedNextRun bool) (time.Time, bool) {
	if j.Schedule == nil {
		return time.Time{}, false
	}
	if j.Schedule.Cron != "" {
		cs, err := ParseCron(j.Schedule.Cron)
		if err != nil {
			return time.Time{}, false
		}
		return cs.NextRun(from)
	}
	if j.Schedule.IntervalMs > 0 {
		if useProvidedNextRun && j.Schedule.NextRun != nil {
			return *j.Schedule.NextRun, true
		}
		return from.Add(time.Duration(j.Schedule.IntervalMs) * time.Millisecond), true
	}
	return time.Time{}, false
}

// Add inserts j into the heap if it carries a schedule, replacing any
// existing entry for the same id. A no-op if j.Schedule is nil.
func (s *Scheduler) Add(j *job.Job) {
	if j.Schedule == nil {
		return
	}
	next, ok := nextRunFor(j, time.Now(), true)
	if !ok {
		s.logger.Warn("scheduler: job has a schedule but no computable next run", "id", j.ID)
		return
	}
	s.mu.Lock()
	e := &entry{jobID: j.ID, name: j.Name, nextRun: next.UnixMilli(), snapshot: j.Clone()}
	s.pq.pushEntry(e)
	s.metrics.SetHeapSize(s.pq.Len())
	top := s.pq.peek()
	s.mu.Unlock()

	if top == e {
		s.requestWake()
	}
}

// Remove drops id from the heap in O(log n); a no-op if absent.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	s.pq.removeByID(id)
	delete(s.lastFiredMinute, id)
	s.metrics.SetHeapSize(s.pq.Len())
	s.mu.Unlock()
}

// Update is remove-then-add.
func (s *Scheduler) Update(j *job.Job) {
	s.Remove(j.ID)
	s.Add(j)
}

// Len reports the current heap size.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pq.Len()
}

func (s *Scheduler) requestWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drains due jobs until ctx is canceled. Every tick: pop entries
// whose next_run has arrived, emit job.due for each (unless a cron
// job already fired this calendar minute), recompute and reinsert
// next-run, then sleep until the new heap top is due.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.rescheduleTimer()
		case <-s.timer.C:
			s.tick()
			s.rescheduleTimer()
		}
	}
}

func (s *Scheduler) tick() {
	start := time.Now()
	dueBoundary := start.Add(s.cfg.DueBuffer).UnixMilli()

	var due, fired int
	for {
		s.mu.Lock()
		top := s.pq.peek()
		if top == nil || top.nextRun > dueBoundary {
			s.mu.Unlock()
			break
		}
		e := s.pq.popMin()
		s.mu.Unlock()
		due++

		if e.snapshot.Schedule != nil && e.snapshot.Schedule.Cron != "" && s.alreadyFiredThisMinute(e) {
			s.reinsertAfterFire(e, time.UnixMilli(e.nextRun), false)
			continue
		}

		s.markFired(e)
		fired++
		if s.bus != nil {
			ev := events.New(events.KindDue, e.jobID)
			ev.Name = e.name
			s.bus.Publish(ev)
		}
		s.reinsertAfterFire(e, start, true)
	}

	s.mu.Lock()
	s.metrics.SetHeapSize(s.pq.Len())
	s.mu.Unlock()
	s.metrics.RecordTick(due, fired, time.Since(start).Nanoseconds())
}

func minuteBucket(t time.Time) int64 { return t.UnixMilli() / 60000 }

func (s *Scheduler) alreadyFiredThisMinute(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastFiredMinute[e.jobID]
	return ok && last == minuteBucket(time.UnixMilli(e.nextRun))
}

func (s *Scheduler) markFired(e *entry) {
	s.mu.Lock()
	s.lastFiredMinute[e.jobID] = minuteBucket(time.UnixMilli(e.nextRun))
	s.mu.Unlock()
}

// reinsertAfterFire recomputes next-run from `from` and reinserts e,
// or drops its last-fired bookkeeping if it has no further run.
func (s *Scheduler) reinsertAfterFire(e *entry, from time.Time, fromNow bool) {
	var base time.Time
	if fromNow {
		base = from
	} else {
		// Suppressed duplicate cron fire: reschedule a minute out.
		base = from.Add(time.Minute)
	}
	next, ok := nextRunFor(e.snapshot, base, false)
	if !ok {
		s.mu.Lock()
		delete(s.lastFiredMinute, e.jobID)
		s.mu.Unlock()
		return
	}
	e.nextRun = next.UnixMilli()
	s.mu.Lock()
	s.pq.pushEntry(e)
	s.mu.Unlock()
}

func (s *Scheduler) rescheduleTimer() {
	s.mu.Lock()
	top := s.pq.peek()
	s.mu.Unlock()

	var wait time.Duration
	if top == nil {
		wait = s.cfg.MaxInterval
	} else {
		wait = time.Until(time.UnixMilli(top.nextRun))
		if wait < s.cfg.MinInterval {
			wait = s.cfg.MinInterval
		}
		if wait > s.cfg.MaxInterval {
			wait = s.cfg.MaxInterval
		}
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
	s.timer.Reset(wait)
}
