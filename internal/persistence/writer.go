// Package persistence implements the snapshot file: a single JSON
// document holding every job record, written with owner-only
// permissions and loaded at startup. It is not a write-ahead
// log — every write replaces the whole file via write-to-temp then
// rename, so a crash mid-write never corrupts the previous snapshot.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lsh-sh/lsh/internal/job"
)

// FileMode is the permission bits the snapshot file is written with:
// owner read/write only.
const FileMode = 0o600

// document is the top-level shape of the snapshot file: a bare JSON
// array of job records.
type document = []*job.Job

// Writer reads and writes the snapshot file at Path.
type Writer struct {
	Path string
}

// NewWriter constructs a Writer for the given path.
func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Save serializes jobs to the snapshot file atomically.
func (w *Writer) Save(jobs []*job.Job) error {
	if jobs == nil {
		jobs = []*job.Job{}
	}
	data, err := json.MarshalIndent(document(jobs), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, ".lsh-jobs-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, w.Path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Load reads the snapshot file, normalizing any job that was left
// "running" (the process did not survive the restart, and its pid
// must not be reused) to "stopped". A missing or empty file yields no
// jobs and no error. A malformed file yields an error; the daemon logs
// it and starts with no loaded jobs, and the next successful Save
// overwrites whatever was there.
func (w *Writer) Load() ([]*job.Job, error) {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var jobs document
	if err := json.Unmarshal(data, &jobs); err != nil {
		// Malformed/truncated file: log-and-treat-as-empty is the
		// caller's job (it has the logger); we only report it.
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}

	now := time.Now()
	for _, j := range jobs {
		if j.Status == job.StatusRunning || j.Status == job.StatusPaused {
			j.Status = job.StatusStopped
			j.CompletedAt = &now
		}
	}
	return jobs, nil
}
