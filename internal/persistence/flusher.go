package persistence

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lsh-sh/lsh/internal/job"
)

// SnapshotSource supplies the current in-memory state to serialize.
// store.Store satisfies this.
type SnapshotSource interface {
	Snapshot() []*job.Job
}

// Flusher coalesces write-through requests into a single writer
// goroutine: every mutation enqueues a "flush requested" token on a
// channel the writer drains. RequestFlush never blocks the caller; if
// a flush is already queued,
// duplicate requests are absorbed for free since the writer always
// re-reads the latest snapshot rather than replaying a stale queued
// payload.
type Flusher struct {
	writer *Writer
	source SnapshotSource
	logger *slog.Logger

	requests chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewFlusher constructs a Flusher. Run must be started in its own
// goroutine before RequestFlush is useful.
func NewFlusher(writer *Writer, source SnapshotSource, logger *slog.Logger) *Flusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flusher{
		writer:   writer,
		source:   source,
		logger:   logger.With("component", "persistence"),
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// RequestFlush enqueues a flush without blocking. A full queue (depth
// 1) means a flush is already pending, which will pick up the latest
// state anyway, so the extra request is safely dropped.
func (f *Flusher) RequestFlush() {
	select {
	case f.requests <- struct{}{}:
	default:
	}
}

// Run drains flush requests until ctx is canceled, writing the latest
// snapshot on each one. It performs a final flush before returning so
// a graceful shutdown never loses the last mutation it was asked to
// persist.
func (f *Flusher) Run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case <-f.requests:
			f.flushOnce()
		case <-ctx.Done():
			f.flushOnce()
			return
		}
	}
}

func (f *Flusher) flushOnce() {
	snap := f.source.Snapshot()
	if err := f.writer.Save(snap); err != nil {
		f.logger.Error("persistence: flush failed", "error", err, "path", f.writer.Path)
	}
}

// Wait blocks until Run has returned (its final flush has completed).
func (f *Flusher) Wait() {
	<-f.done
}
