package scheduler

import "testing"

func TestPriorityQueueOrdering(t *testing.T) {
	pq := newPriorityQueue()
	pq.pushEntry(&entry{jobID: "a", nextRun: 300})
	pq.pushEntry(&entry{jobID: "b", nextRun: 100})
	pq.pushEntry(&entry{jobID: "c", nextRun: 200})

	var order []string
	for pq.Len() > 0 {
		order = append(order, pq.popMin().jobID)
	}
	want := []string{"b", "c", "a"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("want order %v, got %v", want, order)
		}
	}
}

func TestPriorityQueuePushEntryReplacesDuplicate(t *testing.T) {
	pq := newPriorityQueue()
	pq.pushEntry(&entry{jobID: "a", nextRun: 500})
	pq.pushEntry(&entry{jobID: "a", nextRun: 50})

	if pq.Len() != 1 {
		t.Fatalf("want 1 entry after duplicate push, got %d", pq.Len())
	}
	if got := pq.peek().nextRun; got != 50 {
		t.Fatalf("want replaced entry's nextRun 50, got %d", got)
	}
}

func TestPriorityQueueRemoveByID(t *testing.T) {
	pq := newPriorityQueue()
	pq.pushEntry(&entry{jobID: "a", nextRun: 100})
	pq.pushEntry(&entry{jobID: "b", nextRun: 200})
	pq.pushEntry(&entry{jobID: "c", nextRun: 300})

	removed, ok := pq.removeByID("b")
	if !ok || removed.jobID != "b" {
		t.Fatalf("want to remove b, got %v, %v", removed, ok)
	}
	if _, ok := pq.removeByID("b"); ok {
		t.Fatal("want second removal of b to report absent")
	}
	if pq.Len() != 2 {
		t.Fatalf("want 2 entries remaining, got %d", pq.Len())
	}

	// idIndex must stay consistent: every remaining id should still be
	// removable exactly once.
	if _, ok := pq.removeByID("a"); !ok {
		t.Fatal("want a still present")
	}
	if _, ok := pq.removeByID("c"); !ok {
		t.Fatal("want c still present")
	}
	if pq.Len() != 0 {
		t.Fatalf("want empty queue, got %d", pq.Len())
	}
}

func TestPriorityQueuePeekEmpty(t *testing.T) {
	pq := newPriorityQueue()
	if pq.peek() != nil {
		t.Fatal("want nil peek on empty queue")
	}
	if pq.popMin() != nil {
		t.Fatal("want nil popMin on empty queue")
	}
}
