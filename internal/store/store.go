// Package store implements the job store: the sole in-memory owner of
// job records, with CRUD and filtered queries. Every mutating
// operation is serialized behind a single mutex; reads take a read
// lock and return snapshots so callers never observe a record
// mid-mutation and can never mutate the store's own copy.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lsh-sh/lsh/internal/events"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/joberr"
)

// Killer is the supervisor-side dependency Store.Remove uses for a
// forced removal: it sends the hard-kill signal and may return before
// the process has exited. Remove itself waits for the resulting
// terminal UpdateStatus, so the record is never deleted out from under
// a still-running process.
type Killer interface {
	Kill(ctx context.Context, id string) error
}

// Flusher receives a non-blocking hint that the store changed and a
// persistence snapshot should be written. The store never waits on
// the write itself; I/O errors during write are logged but never fail
// the mutating operation that triggered them.
type Flusher interface {
	RequestFlush()
}

// Store is the in-memory job map.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*job.Job
	nextID  int
	logger  *slog.Logger
	bus     *events.Bus
	flusher Flusher
	killer  Killer

	// pendingRemovals holds a channel per job id waiting on a forced
	// removal's exit event; UpdateStatus closes and deletes the
	// record once the transition reaches a terminal status.
	pendingRemovals map[string]chan struct{}
}

// New constructs an empty store. SetFlusher and SetKiller may be
// called afterward to wire in persistence and the supervisor,
// breaking what would otherwise be an import cycle.
func New(logger *slog.Logger, bus *events.Bus) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		jobs:            make(map[string]*job.Job),
		logger:          logger.With("component", "store"),
		bus:             bus,
		pendingRemovals: make(map[string]chan struct{}),
	}
}

// SetFlusher wires the persistence writer. Must be called before any
// mutating operation if write-through persistence is desired.
func (s *Store) SetFlusher(f Flusher) { s.flusher = f }

// SetKiller wires the supervisor dependency used by forced removal.
func (s *Store) SetKiller(k Killer) { s.killer = k }

// SeedNextID advances the monotonic id counter past n, used after
// loading a persisted snapshot so freshly created jobs never collide
// with loaded ids.
func (s *Store) SeedNextID(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.nextID {
		s.nextID = n
	}
}

// LoadSnapshot replaces the in-memory map wholesale with jobs loaded
// from persistence. Intended for daemon startup only.
func (s *Store) LoadSnapshot(jobs []*job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*job.Job, len(jobs))
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
}

func (s *Store) allocateID() string {
	s.nextID++
	return fmt.Sprintf("job_%d", s.nextID)
}

// Create adds a new job in StatusCreated. The command must be
// non-empty; priority is clamped into range rather than rejected.
func (s *Store) Create(spec job.Spec) (*job.Job, error) {
	if spec.Command == "" {
		return nil, joberr.InvalidSpec("command must not be empty")
	}
	s.mu.Lock()
	id := spec.ID
	if id == "" {
		id = s.allocateID()
	} else if _, exists := s.jobs[id]; exists {
		s.mu.Unlock()
		return nil, joberr.InvalidSpec(fmt.Sprintf("job id %q already exists", id))
	}
	if spec.Type == "" {
		spec.Type = job.TypeSystem
	}
	name := spec.Name
	if name == "" {
		name = id
	}
	j := &job.Job{
		ID:          id,
		Name:        name,
		Command:     spec.Command,
		Argv:        spec.Argv,
		Type:        spec.Type,
		Cwd:         spec.Cwd,
		Env:         spec.Env,
		User:        spec.User,
		Schedule:    spec.Schedule,
		Priority:    job.ClampPriority(spec.Priority),
		TimeoutMs:   spec.TimeoutMs,
		Status:      job.StatusCreated,
		CreatedAt:   time.Now(),
		Tags:        spec.Tags,
		Description: spec.Description,
		LogFile:     spec.LogFile,
		MaxMemory:   spec.MaxMemory,
		MaxCPU:      spec.MaxCPU,
	}
	s.jobs[id] = j
	snap := j.Clone()
	s.mu.Unlock()

	s.publish(events.KindCreated, snap.ID, snap.Name)
	s.requestFlush()
	s.logger.Info("job created", "id", snap.ID, "type", snap.Type, "command", snap.Command)
	return snap, nil
}

// Get returns a snapshot of the job, or false if it doesn't exist.
func (s *Store) Get(id string) (*job.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// List returns a snapshot of every job matching filter, ordered by
// CreatedAt descending.
func (s *Store) List(filter Filter) ([]*job.Job, error) {
	if err := filter.compile(); err != nil {
		return nil, joberr.InvalidSpec(fmt.Sprintf("invalid name filter: %v", err))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.matches(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out, nil
}

// Update patches mutable metadata. Changing Priority on a running job
// is applied to the live process by the caller (the daemon), which
// owns the supervisor reference; Update itself only updates the
// record and reports the new value back so the caller can renice.
func (s *Store) Update(id string, patch job.Patch) (*job.Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, joberr.NotFound(id)
	}
	if patch.Name != nil {
		j.Name = *patch.Name
	}
	if patch.Priority != nil {
		j.Priority = job.ClampPriority(*patch.Priority)
	}
	if patch.MaxMemory != nil {
		j.MaxMemory = *patch.MaxMemory
	}
	if patch.MaxCPU != nil {
		j.MaxCPU = *patch.MaxCPU
	}
	if patch.TimeoutMs != nil {
		j.TimeoutMs = *patch.TimeoutMs
	}
	if patch.Tags != nil {
		j.Tags = patch.Tags
	}
	if patch.Description != nil {
		j.Description = *patch.Description
	}
	if patch.Schedule != nil {
		j.Schedule = patch.Schedule
	}
	snap := j.Clone()
	s.mu.Unlock()

	s.requestFlush()
	return snap, nil
}

// UpdateStatus atomically applies a legal transition. extras carries
// the fields that accompany the transition (pid, exit code, timing).
// If a forced removal is pending for id and the new status is
// terminal, the record is deleted and the waiting Remove call is
// released instead of leaving a terminal record behind.
func (s *Store) UpdateStatus(id string, newStatus job.Status, extras job.StatusExtras) (*job.Job, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, joberr.NotFound(id)
	}
	oldStatus := j.Status
	if !LegalTransition(oldStatus, newStatus) {
		s.mu.Unlock()
		return nil, joberr.InvalidState(id, fmt.Sprintf("cannot transition %s -> %s", oldStatus, newStatus))
	}
	j.Status = newStatus
	switch newStatus {
	case job.StatusRunning:
		if extras.PID != 0 {
			j.PID = extras.PID
		}
		if extras.StartedAt != nil {
			j.StartedAt = extras.StartedAt
		} else if j.StartedAt == nil {
			now := time.Now()
			j.StartedAt = &now
		}
	case job.StatusCompleted, job.StatusFailed, job.StatusKilled:
		if extras.CompletedAt != nil {
			j.CompletedAt = extras.CompletedAt
		} else {
			now := time.Now()
			j.CompletedAt = &now
		}
		if extras.ExitCode != nil {
			j.ExitCode = extras.ExitCode
		}
		if extras.Stdout != nil {
			j.Stdout = *extras.Stdout
		}
		if extras.Stderr != nil {
			j.Stderr = *extras.Stderr
		}
	}

	var releaseCh chan struct{}
	if newStatus.Terminal() {
		if ch, pending := s.pendingRemovals[id]; pending {
			delete(s.pendingRemovals, id)
			delete(s.jobs, id)
			releaseCh = ch
		}
	}
	snap := j.Clone()
	s.mu.Unlock()

	s.publishForStatus(oldStatus, newStatus, snap, extras)
	s.requestFlush()
	if releaseCh != nil {
		close(releaseCh)
		s.publish(events.KindRemoved, id, snap.Name)
	}
	return snap, nil
}

func (s *Store) publishForStatus(oldStatus, newStatus job.Status, snap *job.Job, extras job.StatusExtras) {
	var kind events.Kind
	switch newStatus {
	case job.StatusRunning:
		if oldStatus == job.StatusPaused {
			kind = events.KindResumed
		} else {
			kind = events.KindStarted
		}
	case job.StatusPaused:
		kind = events.KindPaused
	case job.StatusStopped:
		kind = events.KindStopped
	case job.StatusCompleted:
		kind = events.KindCompleted
	case job.StatusFailed:
		kind = events.KindFailed
	case job.StatusKilled:
		kind = events.KindKilled
	default:
		return
	}
	if s.bus == nil {
		return
	}
	ev := events.New(kind, snap.ID)
	ev.Name = snap.Name
	ev.ExitCode = extras.ExitCode
	s.bus.Publish(ev)
}

func (s *Store) publish(kind events.Kind, id, name string) {
	if s.bus == nil {
		return
	}
	ev := events.New(kind, id)
	ev.Name = name
	s.bus.Publish(ev)
}

func (s *Store) requestFlush() {
	if s.flusher != nil {
		s.flusher.RequestFlush()
	}
}

// Remove deletes a job. Terminal and created jobs are removed
// outright. A running, paused, or stopped job requires force=true.
// With force, a running or paused job's process is killed and Remove
// blocks until the resulting exit event has actually transitioned the
// record to a terminal status, so the record is never deleted out
// from under a process still holding its pid; a stopped job has no
// live process to wait for and is removed immediately.
func (s *Store) Remove(ctx context.Context, id string, force bool) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return joberr.NotFound(id)
	}
	if removableTerminal(j.Status) {
		delete(s.jobs, id)
		s.mu.Unlock()
		s.publish(events.KindRemoved, id, j.Name)
		s.requestFlush()
		return nil
	}
	if !force && j.Status != job.StatusCreated {
		s.mu.Unlock()
		return joberr.InvalidState(id, fmt.Sprintf("job is %s; use force to remove", j.Status))
	}
	if !j.Status.Live() {
		// No live process to wait for (created, stopped, or already
		// terminal): just remove.
		delete(s.jobs, id)
		s.mu.Unlock()
		s.publish(events.KindRemoved, id, j.Name)
		s.requestFlush()
		return nil
	}
	ch := make(chan struct{})
	s.pendingRemovals[id] = ch
	s.mu.Unlock()

	if s.killer == nil {
		s.mu.Lock()
		delete(s.pendingRemovals, id)
		s.mu.Unlock()
		return joberr.IOError("no killer wired for forced removal", nil)
	}
	if err := s.killer.Kill(ctx, id); err != nil {
		s.logger.Warn("force remove: kill failed, waiting for exit anyway", "id", id, "error", err)
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup removes every terminal job whose CompletedAt predates
// olderThan, returning the count removed.
func (s *Store) Cleanup(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, j := range s.jobs {
		if !j.Status.Terminal() {
			continue
		}
		if j.CompletedAt != nil && j.CompletedAt.Before(olderThan) {
			delete(s.jobs, id)
			count++
		}
	}
	if count > 0 {
		s.requestFlush()
	}
	return count
}

// Snapshot returns every job in the store, unfiltered and unsorted;
// used by the persistence writer to build the on-disk document.
func (s *Store) Snapshot() []*job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out
}

// Stats summarizes the store for GetStats.
type Stats struct {
	Total     int
	ByStatus  map[job.Status]int
	ByType    map[job.Type]int
	Running   int
	Completed int
	Failed    int
}

// Stats computes the aggregate counts the daemon's GetStats operation
// reports.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Stats{
		ByStatus: make(map[job.Status]int),
		ByType:   make(map[job.Type]int),
	}
	for _, j := range s.jobs {
		out.Total++
		out.ByStatus[j.Status]++
		out.ByType[j.Type]++
		switch j.Status {
		case job.StatusRunning:
			out.Running++
		case job.StatusCompleted:
			out.Completed++
		case job.StatusFailed:
			out.Failed++
		}
	}
	return out
}
