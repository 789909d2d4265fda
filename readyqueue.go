package scheduler

import "container/heap"

// readyQueue is the ordered view over pending tasks whose dependencies are
// all satisfied (spec §4.4). It is a binary heap keyed by
// (-effectivePriority, enqueueSeq) so Pop always yields the highest
// effective priority, breaking ties by earliest insertion — and supports
// decrease-key style priority raises via fix() in O(log n), per spec design
// note option (a).
type readyQueue struct {
	items []*task
}

func newReadyQueue() *readyQueue {
	return &readyQueue{}
}

// heap.Interface implementation. Less ranks higher effective priority first
// and, within equal priority, earlier enqueueSeq first.
func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.effectivePriority != b.effectivePriority {
		return a.effectivePriority > b.effectivePriority
	}
	return a.enqueueSeq < b.enqueueSeq
}

func (q *readyQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].heapIndex = i
	q.items[j].heapIndex = j
}

func (q *readyQueue) Push(x interface{}) {
	t := x.(*task)
	t.heapIndex = len(q.items)
	q.items = append(q.items, t)
}

func (q *readyQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIndex = -1
	q.items = old[:n-1]
	return t
}

// insert adds t to the ready index. Inserting a task that is already present
// is a no-op.
func (q *readyQueue) insert(t *task) {
	if t.inReady {
		return
	}
	t.inReady = true
	heap.Push(q, t)
}

// remove drops t from the ready index if present (used when a pending task
// terminates via cascade before ever being dispatched).
func (q *readyQueue) remove(t *task) {
	if !t.inReady {
		return
	}
	heap.Remove(q, t.heapIndex)
	t.inReady = false
}

// fix re-establishes heap order for t after its effective priority changed.
func (q *readyQueue) fix(t *task) {
	if !t.inReady {
		return
	}
	heap.Fix(q, t.heapIndex)
}

// popFront extracts the top-priority ready task, if any.
func (q *readyQueue) popFront() *task {
	if q.Len() == 0 {
		return nil
	}
	t := heap.Pop(q).(*task)
	t.inReady = false
	return t
}
