// Package daemon wires the job store, persistence writer, process
// supervisor, and scheduler together behind the transport-agnostic
// control API. It is adapted from the teacher's
// cmd/devclaw/commands/serve.go assembly: construct every
// subsystem, start their background loops, wait for a shutdown
// signal, drain, and exit — except here the subsystems are the job
// daemon's own (store/persistence/supervisor/scheduler) rather than
// messaging channels.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lsh-sh/lsh/internal/daemonconfig"
	"github.com/lsh-sh/lsh/internal/events"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/joberr"
	"github.com/lsh-sh/lsh/internal/metrics"
	"github.com/lsh-sh/lsh/internal/persistence"
	"github.com/lsh-sh/lsh/internal/scheduler"
	"github.com/lsh-sh/lsh/internal/store"
	"github.com/lsh-sh/lsh/internal/supervisor"
	"github.com/lsh-sh/lsh/internal/sysprocs"
)

// Phase is the daemon's own lifecycle state, independent of any one
// job's status.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseReady    Phase = "ready"
	PhaseDraining Phase = "draining"
	PhaseStopped  Phase = "stopped"
)

// killAdapter satisfies store.Killer by forwarding to the supervisor;
// kept as its own tiny type rather than having Supervisor implement
// store.Killer directly, so the store package never imports supervisor.
type killAdapter struct{ sup *supervisor.Supervisor }

func (k killAdapter) Kill(ctx context.Context, id string) error { return k.sup.Kill(ctx, id) }

// Daemon is the assembled job subsystem.
type Daemon struct {
	cfg    *daemonconfig.Config
	logger *slog.Logger

	bus        *events.Bus
	store      *store.Store
	writer     *persistence.Writer
	flusher    *persistence.Flusher
	supervisor *supervisor.Supervisor
	scheduler  *scheduler.Scheduler

	mu    sync.Mutex
	phase Phase

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles every subsystem but starts nothing; call Run to bring
// the daemon up.
func New(cfg *daemonconfig.Config, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	bus := events.NewBus(logger)
	st := store.New(logger, bus)
	writer := persistence.NewWriter(cfg.Persistence.Path)
	flusher := persistence.NewFlusher(writer, st, logger)
	st.SetFlusher(flusher)

	sup := supervisor.New(supervisor.Config{MaxCaptureBytes: cfg.Supervisor.MaxCaptureBytes}, st, logger)
	st.SetKiller(killAdapter{sup})

	minI, maxI, due := cfg.TickDurations()
	sched := scheduler.New(scheduler.Config{MinInterval: minI, MaxInterval: maxI, DueBuffer: due}, bus, logger)

	return &Daemon{
		cfg:        cfg,
		logger:     logger.With("component", "daemon"),
		bus:        bus,
		store:      st,
		writer:     writer,
		flusher:    flusher,
		supervisor: sup,
		scheduler:  sched,
		phase:      PhaseStarting,
	}
}

// Phase reports the daemon's current lifecycle state.
func (d *Daemon) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Daemon) setPhase(p Phase) {
	d.mu.Lock()
	d.phase = p
	d.mu.Unlock()
	d.logger.Info("daemon phase transition", "phase", p)
}

// Run loads any existing snapshot, starts the flusher, scheduler, and
// due-job dispatcher, and blocks until ctx is canceled, at which point
// it drains and returns. Run is the daemon's main-loop equivalent of
// the teacher's runServe: one long-lived call per process lifetime.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.loadSnapshot(); err != nil {
		d.logger.Warn("daemon: starting with empty state after snapshot load failure", "error", err)
	}

	d.wg.Add(1)
	go func() { defer d.wg.Done(); d.flusher.Run(runCtx) }()

	d.wg.Add(1)
	go func() { defer d.wg.Done(); d.scheduler.Run(runCtx) }()

	dueCh, unsubscribe := d.bus.Subscribe()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unsubscribe()
		d.dispatchDue(runCtx, dueCh)
	}()

	d.setPhase(PhaseReady)
	<-runCtx.Done()

	d.drain()
	d.wg.Wait()
	d.setPhase(PhaseStopped)
	return nil
}

// Stop requests shutdown; Run's context cancellation is what actually
// drives draining, so Stop just cancels.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Daemon) loadSnapshot() error {
	jobs, err := d.writer.Load()
	if err != nil {
		return err
	}
	d.store.LoadSnapshot(jobs)
	maxID := 0
	for _, j := range jobs {
		var n int
		if _, scanErr := fmt.Sscanf(j.ID, "job_%d", &n); scanErr == nil && n > maxID {
			maxID = n
		}
		d.scheduler.Add(j)
	}
	d.store.SeedNextID(maxID)
	d.logger.Info("daemon: loaded persisted snapshot", "jobs", len(jobs))
	return nil
}

// dispatchDue handles scheduled-job dispatch: every job-due event
// invokes StartJob, logging and continuing on failure.
func (d *Daemon) dispatchDue(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind != events.KindDue {
				continue
			}
			if d.Phase() == PhaseDraining {
				continue
			}
			if _, err := d.StartJob(ctx, ev.JobID); err != nil {
				d.logger.Warn("daemon: scheduled dispatch failed", "id", ev.JobID, "error", err)
			}
		}
	}
}

// drain moves the daemon into its draining state: soft-terminate
// every running job, wait up to the configured grace period, then
// hard-kill stragglers before a final flush.
func (d *Daemon) drain() {
	d.setPhase(PhaseDraining)

	jobs, _ := d.store.List(store.Filter{Status: []job.Status{job.StatusRunning, job.StatusPaused}})
	for _, j := range jobs {
		if err := d.supervisor.Stop(context.Background(), j.ID, supervisor.SignalTerm); err != nil {
			d.logger.Warn("daemon: soft-terminate failed during drain", "id", j.ID, "error", err)
		}
	}

	grace := time.Duration(d.cfg.GracePeriodMs) * time.Millisecond
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if d.countLive() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, j := range d.stillLive() {
		d.logger.Warn("daemon: escalating to hard kill after grace period", "id", j.ID)
		_ = d.supervisor.Kill(context.Background(), j.ID)
	}

	// The flusher's own last flush ran when the context was canceled,
	// before the jobs above were signaled; write the drained state now.
	d.flusher.Wait()
	if err := d.writer.Save(d.store.Snapshot()); err != nil {
		d.logger.Error("daemon: final flush failed", "error", err)
	}
}

func (d *Daemon) countLive() int {
	return len(d.stillLive())
}

func (d *Daemon) stillLive() []*job.Job {
	jobs, _ := d.store.List(store.Filter{Status: []job.Status{job.StatusRunning, job.StatusPaused}})
	return jobs
}

// CreateJob creates a new job record in StatusCreated.
func (d *Daemon) CreateJob(spec job.Spec) (*job.Job, error) {
	j, err := d.store.Create(spec)
	if err != nil {
		return nil, err
	}
	if j.Schedule != nil {
		d.scheduler.Add(j)
	}
	return j, nil
}

// StartJob spawns the process for a created or stopped job: not
// found if unknown, invalid state if already running.
func (d *Daemon) StartJob(ctx context.Context, id string) (*job.Job, error) {
	if d.Phase() == PhaseDraining {
		return nil, joberr.InvalidState(id, "daemon is draining, refusing new starts")
	}
	j, ok := d.store.Get(id)
	if !ok {
		return nil, joberr.NotFound(id)
	}
	if j.Status == job.StatusRunning {
		return nil, joberr.InvalidState(id, "job is already running")
	}
	if j.Status != job.StatusCreated && j.Status != job.StatusStopped {
		return nil, joberr.InvalidState(id, fmt.Sprintf("job is %s; only created or stopped jobs can be started", j.Status))
	}
	// Mark the job running before spawning so the supervisor's exit
	// handler, which discards exits for non-live jobs, always sees it live.
	running, err := d.store.UpdateStatus(id, job.StatusRunning, job.StatusExtras{})
	if err != nil {
		return nil, err
	}
	if err := d.supervisor.Start(ctx, running); err != nil {
		now := time.Now()
		msg := err.Error()
		_, _ = d.store.UpdateStatus(id, job.StatusFailed, job.StatusExtras{CompletedAt: &now, Stderr: &msg})
		return nil, err
	}
	return running, nil
}

// StopJob signals a running or paused job: not found if unknown,
// invalid state if not live. sig defaults to the platform's
// soft-terminate signal inside the supervisor.
func (d *Daemon) StopJob(ctx context.Context, id string, sig supervisor.Signal) (*job.Job, error) {
	j, ok := d.store.Get(id)
	if !ok {
		return nil, joberr.NotFound(id)
	}
	if !j.Status.Live() {
		return nil, joberr.InvalidState(id, "job is not running")
	}
	if err := d.supervisor.Stop(ctx, id, sig); err != nil {
		return nil, err
	}
	return d.store.UpdateStatus(id, job.StatusStopped, job.StatusExtras{})
}

// PauseJob suspends a running job via the platform job-control stop signal.
func (d *Daemon) PauseJob(ctx context.Context, id string) (*job.Job, error) {
	j, ok := d.store.Get(id)
	if !ok {
		return nil, joberr.NotFound(id)
	}
	if j.Status != job.StatusRunning {
		return nil, joberr.InvalidState(id, "job is not running")
	}
	if err := d.supervisor.Pause(ctx, id); err != nil {
		return nil, err
	}
	return d.store.UpdateStatus(id, job.StatusPaused, job.StatusExtras{})
}

// ResumeJob continues a paused job.
func (d *Daemon) ResumeJob(ctx context.Context, id string) (*job.Job, error) {
	j, ok := d.store.Get(id)
	if !ok {
		return nil, joberr.NotFound(id)
	}
	if j.Status != job.StatusPaused {
		return nil, joberr.InvalidState(id, "job is not paused")
	}
	if err := d.supervisor.Resume(ctx, id); err != nil {
		return nil, err
	}
	return d.store.UpdateStatus(id, job.StatusRunning, job.StatusExtras{})
}

// KillJob is shorthand for StopJob with the hard-kill signal.
func (d *Daemon) KillJob(ctx context.Context, id string) (*job.Job, error) {
	return d.StopJob(ctx, id, supervisor.SignalKill)
}

// ListJobs returns every job matching filter.
func (d *Daemon) ListJobs(filter store.Filter) ([]*job.Job, error) {
	return d.store.List(filter)
}

// GetJob returns a single job by id.
func (d *Daemon) GetJob(id string) (*job.Job, error) {
	j, ok := d.store.Get(id)
	if !ok {
		return nil, joberr.NotFound(id)
	}
	return j, nil
}

// UpdateJob patches a job's mutable metadata. A priority change on a
// live job is applied to the OS process immediately, best-effort.
func (d *Daemon) UpdateJob(id string, patch job.Patch) (*job.Job, error) {
	j, err := d.store.Update(id, patch)
	if err != nil {
		return nil, err
	}
	if patch.Priority != nil && j.Status.Live() {
		if err := d.supervisor.Renice(id, *patch.Priority); err != nil {
			d.logger.Warn("daemon: renice failed, keeping stored priority", "id", id, "error", err)
		}
	}
	if patch.Schedule != nil {
		d.scheduler.Update(j)
	}
	return j, nil
}

// RemoveJob deletes a job record, unscheduling it first.
func (d *Daemon) RemoveJob(ctx context.Context, id string, force bool) (bool, error) {
	d.scheduler.Remove(id)
	if err := d.store.Remove(ctx, id, force); err != nil {
		return false, err
	}
	return true, nil
}

// MonitorJob returns a live CPU/memory sample, or nil if the job
// isn't currently supervised (exited or never started).
func (d *Daemon) MonitorJob(id string) (*supervisor.Sample, error) {
	if _, ok := d.store.Get(id); !ok {
		return nil, joberr.NotFound(id)
	}
	return d.supervisor.Sample(id)
}

// GetSystemProcesses returns a best-effort OS process listing,
// independent of anything this daemon itself supervises.
func (d *Daemon) GetSystemProcesses() ([]sysprocs.ProcessInfo, error) {
	return sysprocs.List()
}

// CleanupJobs removes terminal jobs older than the given threshold.
func (d *Daemon) CleanupJobs(olderThan time.Time) int {
	return d.store.Cleanup(olderThan)
}

// GetStats returns aggregate job counts.
func (d *Daemon) GetStats() store.Stats {
	return d.store.Stats()
}

// Events exposes the event bus for IPC subscribers (e.g. a
// watch/tail control request) without handing out the store or
// supervisor themselves.
func (d *Daemon) Events() *events.Bus { return d.bus }

// SchedulerMetrics exposes the scheduler's own counters for GetStats
// extensions or debug logging.
func (d *Daemon) SchedulerMetrics() metrics.Snapshot { return d.scheduler.Metrics() }
