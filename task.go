package scheduler

import (
	"context"
	"time"
)

// Priority is the total order LOW < NORMAL < HIGH from spec §3.
type Priority int

const (
	LOW Priority = iota
	NORMAL
	HIGH
)

func (p Priority) String() string {
	switch p {
	case LOW:
		return "LOW"
	case NORMAL:
		return "NORMAL"
	case HIGH:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Status is a task's lifecycle state. READY is not a distinct stored value —
// a task is "ready" precisely when Status == PENDING and it is present in
// the scheduler's ready index (spec §3).
type Status string

const (
	Pending   Status = "PENDING"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Cancelled Status = "CANCELLED"
)

func (s Status) terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// RetryStrategy selects the backoff shape used between attempts.
type RetryStrategy int

const (
	IMMEDIATE RetryStrategy = iota
	FIXED
	EXPONENTIAL
)

// ExecutorFunc performs the actual work for a task. It receives the opaque
// payload supplied at AddTask time and a per-attempt TaskContext. A non-nil
// error is treated as a failure for retry/terminal purposes.
type ExecutorFunc func(ctx context.Context, data interface{}, rt *TaskContext) (interface{}, error)

// TaskDescriptor is the caller-supplied input to AddTask.
type TaskDescriptor struct {
	ID            string
	Type          string
	Data          interface{}
	Priority      Priority
	Dependencies  []string
	RetryCount    int
	RetryStrategy RetryStrategy
	Timeout       time.Duration
	Interruptible bool
	OnProgress    func(progress float64)
}

// task is the registry's canonical, mutable entity for a submitted unit of
// work. All fields are guarded by the owning Scheduler's mutex.
type task struct {
	id   string
	typ  string
	data interface{}

	originalPriority  Priority
	effectivePriority Priority

	dependencies map[string]struct{}
	dependents   map[string]struct{}

	retryCount    int
	retryStrategy RetryStrategy
	timeout       time.Duration
	interruptible bool
	onProgress    func(progress float64)

	status   Status
	attempts int
	progress float64
	result   interface{}
	err      error

	enqueuedAt time.Time
	enqueueSeq uint64
	startedAt  time.Time
	finishedAt time.Time

	heapIndex int // maintained by the ready heap while present in it
	inReady   bool

	signal *AbortSignal

	// cancelRetryTimer stops a pending scheduled retry attempt.
	cancelRetryTimer CancelFunc
	// cancelTimeout stops the per-attempt timeout timer.
	cancelTimeout CancelFunc
	// attemptCancel cancels the context.Context handed to the currently
	// running executor, letting CancelTask interrupt an in-flight attempt
	// for interruptible tasks.
	attemptCancel context.CancelFunc
}

func (t *task) dependencyIDs() []string {
	ids := make([]string, 0, len(t.dependencies))
	for id := range t.dependencies {
		ids = append(ids, id)
	}
	return ids
}
