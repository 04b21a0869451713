package scheduler

import (
	"container/heap"

	"github.com/lsh-sh/lsh/internal/job"
)

// entry is one element of the scheduler's min-heap: a job id bound to
// its next fire time, plus the snapshot needed to dispatch it without
// a round-trip to the store.
type entry struct {
	jobID    string
	name     string
	nextRun  int64 // epoch milliseconds
	snapshot *job.Job
	index    int // maintained by priorityQueue.Swap; required by container/heap
}

// priorityQueue is a binary min-heap keyed by nextRun, with an
// auxiliary id -> index map kept in sync on every swap so removal by
// id is O(log n) instead of a linear scan.
type priorityQueue struct {
	entries []*entry
	idIndex map[string]int
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{idIndex: make(map[string]int)}
}

func (pq *priorityQueue) Len() int { return len(pq.entries) }

func (pq *priorityQueue) Less(i, j int) bool {
	return pq.entries[i].nextRun < pq.entries[j].nextRun
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.entries[i], pq.entries[j] = pq.entries[j], pq.entries[i]
	pq.entries[i].index = i
	pq.entries[j].index = j
	pq.idIndex[pq.entries[i].jobID] = i
	pq.idIndex[pq.entries[j].jobID] = j
}

// Push and Pop satisfy container/heap.Interface; callers use the
// wrapper methods below (pushEntry, popMin, removeByID) rather than
// calling heap.Push/heap.Pop directly, so the id map invariant always
// holds.
func (pq *priorityQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(pq.entries)
	pq.idIndex[e.jobID] = e.index
	pq.entries = append(pq.entries, e)
}

func (pq *priorityQueue) Pop() any {
	old := pq.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	pq.entries = old[:n-1]
	delete(pq.idIndex, e.jobID)
	return e
}

// pushEntry inserts e, removing any prior entry for the same job id
// first: Add replaces an existing scheduled entry rather than
// stacking a duplicate.
func (pq *priorityQueue) pushEntry(e *entry) {
	pq.removeByID(e.jobID)
	heap.Push(pq, e)
}

// peek returns the minimum entry without removing it, or nil if empty.
func (pq *priorityQueue) peek() *entry {
	if len(pq.entries) == 0 {
		return nil
	}
	return pq.entries[0]
}

// popMin removes and returns the minimum entry, or nil if empty.
func (pq *priorityQueue) popMin() *entry {
	if len(pq.entries) == 0 {
		return nil
	}
	return heap.Pop(pq).(*entry)
}

// removeByID removes the entry for id in O(log n), reporting whether
// one existed.
func (pq *priorityQueue) removeByID(id string) (*entry, bool) {
	idx, ok := pq.idIndex[id]
	if !ok {
		return nil, false
	}
	e := heap.Remove(pq, idx).(*entry)
	return e, true
}
