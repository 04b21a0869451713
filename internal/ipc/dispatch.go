package ipc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lsh-sh/lsh/internal/daemon"
	"github.com/lsh-sh/lsh/internal/joberr"
	"github.com/lsh-sh/lsh/internal/job"
	"github.com/lsh-sh/lsh/internal/store"
	"github.com/lsh-sh/lsh/internal/supervisor"
)

// toResponseError classifies err by joberr.Kind when possible, falling
// back to a generic io_error so no internal error ever leaks as a
// stack-trace-shaped payload across the wire.
func toResponseError(err error) *ResponseError {
	if je, ok := err.(*joberr.Error); ok {
		return &ResponseError{Kind: string(je.Kind), Message: je.Error()}
	}
	return &ResponseError{Kind: string(joberr.KindIOError), Message: err.Error()}
}

func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		"CreateJob":           handleCreateJob,
		"StartJob":            handleStartJob,
		"StopJob":             handleStopJob,
		"PauseJob":            handlePauseJob,
		"ResumeJob":           handleResumeJob,
		"KillJob":             handleKillJob,
		"ListJobs":            handleListJobs,
		"GetJob":              handleGetJob,
		"UpdateJob":           handleUpdateJob,
		"RemoveJob":           handleRemoveJob,
		"MonitorJob":          handleMonitorJob,
		"GetSystemProcesses":  handleGetSystemProcesses,
		"CleanupJobs":         handleCleanupJobs,
		"GetStats":            handleGetStats,
	}
}

type idParams struct {
	ID string `json:"id"`
}

func handleCreateJob(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var spec job.Spec
	if err := json.Unmarshal(params, &spec); err != nil {
		return nil, joberr.InvalidSpec("malformed create params: " + err.Error())
	}
	return d.CreateJob(spec)
}

func handleStartJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed start params: " + err.Error())
	}
	return d.StartJob(ctx, p.ID)
}

type stopParams struct {
	ID     string `json:"id"`
	Signal string `json:"signal,omitempty"`
}

func handleStopJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p stopParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed stop params: " + err.Error())
	}
	sig := supervisor.Signal(p.Signal)
	return d.StopJob(ctx, p.ID, sig)
}

func handlePauseJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed pause params: " + err.Error())
	}
	return d.PauseJob(ctx, p.ID)
}

func handleResumeJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed resume params: " + err.Error())
	}
	return d.ResumeJob(ctx, p.ID)
}

func handleKillJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed kill params: " + err.Error())
	}
	return d.KillJob(ctx, p.ID)
}

func handleListJobs(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var filter store.Filter
	if len(params) > 0 {
		if err := json.Unmarshal(params, &filter); err != nil {
			return nil, joberr.InvalidSpec("malformed list filter: " + err.Error())
		}
	}
	return d.ListJobs(filter)
}

func handleGetJob(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed get params: " + err.Error())
	}
	return d.GetJob(p.ID)
}

type updateParams struct {
	ID    string    `json:"id"`
	Patch job.Patch `json:"patch"`
}

func handleUpdateJob(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p updateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed update params: " + err.Error())
	}
	return d.UpdateJob(p.ID, p.Patch)
}

type removeParams struct {
	ID    string `json:"id"`
	Force bool   `json:"force,omitempty"`
}

func handleRemoveJob(ctx context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p removeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed remove params: " + err.Error())
	}
	ok, err := d.RemoveJob(ctx, p.ID, p.Force)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"removed": ok}, nil
}

func handleMonitorJob(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p idParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, joberr.InvalidSpec("malformed monitor params: " + err.Error())
	}
	return d.MonitorJob(p.ID)
}

func handleGetSystemProcesses(_ context.Context, d *daemon.Daemon, _ json.RawMessage) (any, error) {
	return d.GetSystemProcesses()
}

type cleanupParams struct {
	OlderThan time.Time `json:"older_than"`
}

func handleCleanupJobs(_ context.Context, d *daemon.Daemon, params json.RawMessage) (any, error) {
	var p cleanupParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, joberr.InvalidSpec("malformed cleanup params: " + err.Error())
		}
	}
	return map[string]int{"removed": d.CleanupJobs(p.OlderThan)}, nil
}

func handleGetStats(_ context.Context, d *daemon.Daemon, _ json.RawMessage) (any, error) {
	return d.GetStats(), nil
}
