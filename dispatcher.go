package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Start arms the scheduler's frame loop and retention sweeper. Calling Start
// on an already-started scheduler is a no-op.
func (sc *Scheduler) Start() {
	sc.mu.Lock()
	if sc.started {
		sc.mu.Unlock()
		return
	}
	sc.started = true
	sc.startRetentionSweeper()
	sc.mu.Unlock()

	// Requested outside the lock: a test FramePump may invoke the callback
	// synchronously, and tick() itself acquires sc.mu.
	cancel := sc.opts.FramePump.RequestFrame(sc.tick)

	sc.mu.Lock()
	sc.stopFrame = cancel
	sc.mu.Unlock()
}

// Stop disarms the frame loop and retention sweeper. Attempts already
// in flight are left to run, and their outcomes (completion, a scheduled
// retry, or failure) are still recorded when they return; no further
// attempt is dispatched until Start is called again.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	if !sc.started {
		sc.mu.Unlock()
		return
	}
	sc.started = false
	if sc.stopFrame != nil {
		sc.stopFrame()
		sc.stopFrame = nil
	}
	sc.mu.Unlock()

	sc.stopRetentionSweeper()
}

// tick is the per-frame dispatch loop, invoked by the FramePump. It pulls up
// to MaxTasksPerFrame ready tasks off the heap, respecting MaxConcurrentTasks
// and FrameTimeBudget, then re-arms itself for the next frame (spec §4.4,
// §4.5).
func (sc *Scheduler) tick(now time.Time) {
	sc.mu.Lock()
	if !sc.started {
		sc.mu.Unlock()
		return
	}

	deadline := now.Add(sc.opts.FrameTimeBudget)
	var events []Event
	dispatched := 0
	for dispatched < sc.opts.MaxTasksPerFrame &&
		sc.runningCount < sc.opts.MaxConcurrentTasks &&
		!sc.clock.Now().After(deadline) &&
		sc.ready.Len() > 0 {

		t := sc.ready.popFront()
		sc.startAttemptLocked(t, &events)
		dispatched++
	}

	sc.metrics.readyDepth.Record(context.Background(), int64(sc.ready.Len()))
	sc.metrics.running.Record(context.Background(), int64(sc.runningCount))
	sc.mu.Unlock()

	sc.emitAll(events)

	sc.mu.Lock()
	stillStarted := sc.started
	sc.mu.Unlock()
	if !stillStarted {
		return
	}

	// Re-armed outside the lock for the same reason as in Start: a test
	// FramePump may invoke the callback synchronously and recurse into
	// tick(), which itself needs sc.mu.
	cancel := sc.opts.FramePump.RequestFrame(sc.tick)

	sc.mu.Lock()
	if sc.started {
		sc.stopFrame = cancel
	} else {
		cancel()
	}
	sc.mu.Unlock()
}

// startAttemptLocked promotes t from PENDING/ready to RUNNING and launches
// its executor in a goroutine. Caller must hold sc.mu.
func (sc *Scheduler) startAttemptLocked(t *task, events *[]Event) {
	t.status = Running
	t.attempts++
	t.startedAt = sc.clock.Now()
	t.signal = newAbortSignal()
	sc.runningCount++

	*events = append(*events, Event{Type: TaskStarted, TaskID: t.id, Priority: t.effectivePriority, Attempt: t.attempts})
	sc.metrics.tasksStarted.Add(context.Background(), 1)

	executor := sc.executors[t.typ]
	frameDeadline := t.startedAt.Add(sc.opts.FrameTimeBudget)

	ctx, cancel := context.WithCancel(context.Background())
	t.attemptCancel = cancel

	signal := t.signal
	rt := &TaskContext{
		Signal:        signal,
		TaskStartedAt: t.startedAt,
		reportProgress: func(p float64) {
			sc.handleProgress(t.id, p)
		},
		shouldYield: func() bool {
			return sc.clock.Now().After(frameDeadline)
		},
	}

	if t.timeout > 0 {
		t.cancelTimeout = sc.clock.AfterFunc(t.timeout, func() {
			signal.abort("Task timeout")
			cancel()
		})
	}

	taskID, typ, attempt, data := t.id, t.typ, t.attempts, t.data
	go sc.runAttempt(ctx, taskID, typ, attempt, data, executor, rt)
}

// runAttempt executes one attempt on its own goroutine and races it against
// ctx: a timeout or an interruptible cancellation both cancel ctx, at which
// point the attempt's own goroutine is abandoned — its eventual result, if
// any, is discarded into a buffered channel nobody reads again (spec §4.6,
// §4.7: "timeout and cancellation both mean stop waiting, not kill the
// executor").
func (sc *Scheduler) runAttempt(ctx context.Context, taskID, typ string, attempt int, data interface{}, executor ExecutorFunc, rt *TaskContext) {
	spanCtx, span := sc.tracer.startAttempt(ctx, taskID, typ, attempt)

	type outcome struct {
		result interface{}
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		res, err := executor(spanCtx, data, rt)
		resultCh <- outcome{result: res, err: err}
	}()

	var out outcome
	select {
	case out = <-resultCh:
	case <-ctx.Done():
		reason := rt.Signal.Reason()
		if reason == "" {
			reason = "Cancelled"
		}
		out = outcome{err: errors.New(reason)}
	}

	if span != nil {
		span.End()
	}

	sc.mu.Lock()
	events := sc.finishAttemptLocked(taskID, out.result, out.err)
	sc.mu.Unlock()

	sc.emitAll(events)
}

// finishAttemptLocked records the outcome of one attempt: completion,
// a scheduled retry, or terminal failure. Caller must hold sc.mu.
func (sc *Scheduler) finishAttemptLocked(taskID string, result interface{}, execErr error) []Event {
	t, ok := sc.tasks[taskID]
	if !ok || t.status != Running {
		// Already swept, or already terminalized by CancelTask while this
		// attempt was in flight. Free the concurrency slot and discard.
		sc.runningCount--
		return nil
	}

	sc.runningCount--
	if t.cancelTimeout != nil {
		t.cancelTimeout()
		t.cancelTimeout = nil
	}
	t.attemptCancel = nil

	duration := sc.clock.Now().Sub(t.startedAt)
	sc.metrics.taskDuration.Record(context.Background(), float64(duration.Milliseconds()))

	var events []Event

	if execErr == nil {
		t.status = Completed
		t.result = result
		t.finishedAt = sc.clock.Now()
		sc.metrics.tasksCompleted.Add(context.Background(), 1)
		events = append(events, Event{Type: TaskCompleted, TaskID: t.id, Priority: t.effectivePriority, Attempt: t.attempts, Result: result})
		sc.cascadeTerminalLocked(t, &events)
		return events
	}

	isTimeout := t.signal != nil && t.signal.Aborted() && t.signal.Reason() == "Task timeout"

	if t.attempts <= t.retryCount {
		delay := sc.retryDelay(t.retryStrategy, t.attempts)
		sc.metrics.retries.Add(context.Background(), 1)
		events = append(events, Event{Type: TaskRetry, TaskID: t.id, Priority: t.effectivePriority, Attempt: t.attempts, Err: execErr, Reason: delay.String()})
		t.status = Pending

		if delay <= 0 {
			sc.ready.insert(t)
		} else {
			retryID := t.id
			t.cancelRetryTimer = sc.clock.AfterFunc(delay, func() {
				sc.mu.Lock()
				if rt, ok := sc.tasks[retryID]; ok && rt.status == Pending {
					rt.cancelRetryTimer = nil
					sc.ready.insert(rt)
				}
				sc.mu.Unlock()
			})
		}
		return events
	}

	kind := ExecutorError
	if isTimeout {
		kind = TaskTimeout
	}
	t.status = Failed
	t.err = newExecutionError(kind, execErr)
	t.finishedAt = sc.clock.Now()
	sc.metrics.tasksFailed.Add(context.Background(), 1)
	events = append(events, Event{Type: TaskFailed, TaskID: t.id, Priority: t.effectivePriority, Attempt: t.attempts, Err: t.err})
	sc.cascadeTerminalLocked(t, &events)
	return events
}

// handleProgress applies a TASK_PROGRESS report from an executor: it updates
// the task record, invokes the descriptor's OnProgress callback (if any),
// and emits the event.
func (sc *Scheduler) handleProgress(taskID string, progress float64) {
	sc.mu.Lock()
	t, ok := sc.tasks[taskID]
	if !ok || t.status != Running {
		sc.mu.Unlock()
		return
	}
	t.progress = progress
	cb := t.onProgress
	priority := t.effectivePriority
	sc.mu.Unlock()

	if cb != nil {
		cb(progress)
	}
	sc.emitter.Emit(Event{Type: TaskProgress, TaskID: taskID, Priority: priority, Progress: progress})
}
