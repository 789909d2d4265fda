package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func mkTask(id string, pri Priority, seq uint64) *task {
	return &task{id: id, effectivePriority: pri, enqueueSeq: seq, heapIndex: -1}
}

func TestReadyQueueOrdersByPriorityThenSeq(t *testing.T) {
	q := newReadyQueue()
	a := mkTask("a", NORMAL, 1)
	b := mkTask("b", HIGH, 2)
	c := mkTask("c", NORMAL, 3)
	d := mkTask("d", LOW, 4)

	q.insert(a)
	q.insert(b)
	q.insert(c)
	q.insert(d)

	var order []string
	for q.Len() > 0 {
		order = append(order, q.popFront().id)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, order)
}

func TestReadyQueueRemove(t *testing.T) {
	q := newReadyQueue()
	a := mkTask("a", NORMAL, 1)
	b := mkTask("b", NORMAL, 2)
	q.insert(a)
	q.insert(b)

	q.remove(a)
	assert.False(t, a.inReady)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, "b", q.popFront().id)
}

func TestReadyQueueFixReordersOnPriorityIncrease(t *testing.T) {
	q := newReadyQueue()
	a := mkTask("a", LOW, 1)
	b := mkTask("b", NORMAL, 2)
	q.insert(a)
	q.insert(b)

	a.effectivePriority = HIGH
	q.fix(a)

	assert.Equal(t, "a", q.popFront().id)
}

func TestReadyQueueInsertIsIdempotent(t *testing.T) {
	q := newReadyQueue()
	a := mkTask("a", NORMAL, 1)
	q.insert(a)
	q.insert(a)
	assert.Equal(t, 1, q.Len())
}
