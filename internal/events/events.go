// Package events implements the typed publish/subscribe facility the
// daemon uses to broadcast job lifecycle transitions: a tagged-variant
// Event type fanned out to a channel per subscriber.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the tagged-variant discriminator for Event.
type Kind string

const (
	KindCreated   Kind = "created"
	KindStarted   Kind = "started"
	KindOutput    Kind = "output"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
	KindKilled    Kind = "killed"
	KindPaused    Kind = "paused"
	KindResumed   Kind = "resumed"
	KindStopped   Kind = "stopped"
	KindRemoved   Kind = "removed"
	KindDue       Kind = "due"
)

// Event is the single tagged-variant type carried to every subscriber.
// Only the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	ID    string
	Kind  Kind
	JobID string
	Name  string
	At    time.Time

	ExitCode *int
	Signal   string
	Stream   string // "stdout" or "stderr", for KindOutput
	Data     []byte // output bytes, for KindOutput
	Reason   string // human-readable context, e.g. timeout kill reason
}

// New stamps an Event with a fresh correlation id and timestamp.
func New(kind Kind, jobID string) Event {
	return Event{
		ID:    uuid.NewString(),
		Kind:  kind,
		JobID: jobID,
		At:    time.Now(),
	}
}

// subscriberBuffer bounds how many pending events a slow subscriber
// may accumulate before new events to it are dropped. Publishing must
// never block on a stalled subscriber.
const subscriberBuffer = 256

// Bus fans a single stream of Events out to any number of
// subscribers. Per-job ordering is preserved because every mutation
// that produces an Event is itself serialized by the store/supervisor
// before Publish is called; the bus never reorders what it receives.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBus constructs an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger.With("component", "events"),
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is buffered; callers that can't
// keep up will miss events (each drop is logged) rather than stall the
// publisher.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish fans out ev to every current subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("events: dropping event for slow subscriber",
				"subscriber", id, "kind", ev.Kind, "job_id", ev.JobID)
		}
	}
}

// Close unsubscribes and closes every remaining subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
