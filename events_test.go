package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversInRegistrationOrder(t *testing.T) {
	e := newEmitter()
	var order []int
	e.On(TaskAdded, func(Event) { order = append(order, 1) })
	e.On(TaskAdded, func(Event) { order = append(order, 2) })
	e.On(TaskAdded, func(Event) { order = append(order, 3) })

	e.Emit(Event{Type: TaskAdded})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmitterOffRemovesOnlyThatListener(t *testing.T) {
	e := newEmitter()
	var calls []string
	e.On(TaskAdded, func(Event) { calls = append(calls, "a") })
	id := e.On(TaskAdded, func(Event) { calls = append(calls, "b") })
	e.On(TaskAdded, func(Event) { calls = append(calls, "c") })

	e.Off(TaskAdded, id)
	e.Emit(Event{Type: TaskAdded})
	assert.Equal(t, []string{"a", "c"}, calls)
}

func TestEmitterIsolatesPanickingListener(t *testing.T) {
	e := newEmitter()
	var secondCalled bool
	e.On(TaskAdded, func(Event) { panic("boom") })
	e.On(TaskAdded, func(Event) { secondCalled = true })

	assert.NotPanics(t, func() { e.Emit(Event{Type: TaskAdded}) })
	assert.True(t, secondCalled)
}

func TestEmitterOnlyDeliversToMatchingType(t *testing.T) {
	e := newEmitter()
	var got []EventType
	e.On(TaskAdded, func(ev Event) { got = append(got, ev.Type) })
	e.On(TaskCompleted, func(ev Event) { got = append(got, ev.Type) })

	e.Emit(Event{Type: TaskAdded})
	assert.Equal(t, []EventType{TaskAdded}, got)
}

func TestAbortSignalNotifiesListenersSynchronously(t *testing.T) {
	s := newAbortSignal()
	var reason string
	s.OnAbort(func(r string) { reason = r })

	s.abort("stop")
	assert.True(t, s.Aborted())
	assert.Equal(t, "stop", reason)
	assert.Equal(t, "stop", s.Reason())
}

func TestAbortSignalLateListenerFiresImmediately(t *testing.T) {
	s := newAbortSignal()
	s.abort("already gone")

	var reason string
	s.OnAbort(func(r string) { reason = r })
	assert.Equal(t, "already gone", reason)
}

func TestAbortSignalSecondAbortIsNoop(t *testing.T) {
	s := newAbortSignal()
	s.abort("first")
	s.abort("second")
	assert.Equal(t, "first", s.Reason())
}
