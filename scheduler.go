package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Unknown is the sentinel GetTaskStatus returns for an id the scheduler has
// never seen, or has already swept away (spec §4.9).
const Unknown Status = "UNKNOWN"

// Options configures a Scheduler. Every field is optional; zero values are
// replaced by the documented defaults in New (spec §6).
type Options struct {
	MaxTasksPerFrame   int
	FrameTimeBudget    time.Duration
	MaxConcurrentTasks int
	RetentionPeriod    time.Duration
	QueueSizeLimit     int // 0 = unlimited
	BaseRetryDelay     time.Duration
	MaxRetryDelay      time.Duration
	SweepInterval      time.Duration

	// Clock and FramePump let an embedding host (or a test) substitute the
	// wall clock and the per-frame callback primitive.
	Clock     Clock
	FramePump FramePump

	Meter  metric.Meter
	Tracer trace.Tracer
}

func (o Options) withDefaults() Options {
	if o.MaxTasksPerFrame <= 0 {
		o.MaxTasksPerFrame = 10
	}
	if o.FrameTimeBudget <= 0 {
		o.FrameTimeBudget = 16 * time.Millisecond
	}
	if o.MaxConcurrentTasks <= 0 {
		o.MaxConcurrentTasks = 5
	}
	if o.RetentionPeriod <= 0 {
		o.RetentionPeriod = 60 * time.Second
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = 100 * time.Millisecond
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 30 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.FramePump == nil {
		o.FramePump = newRealFramePump(o.Clock, o.FrameTimeBudget)
	}
	if o.Meter == nil {
		o.Meter = otel.GetMeterProvider().Meter("github.com/swarmguard/taskscheduler")
	}
	if o.Tracer == nil {
		o.Tracer = otel.GetTracerProvider().Tracer("github.com/swarmguard/taskscheduler")
	}
	return o
}

// Stats is the snapshot returned by GetStats.
type Stats struct {
	TotalTasks     int
	PendingTasks   int
	RunningTasks   int
	CompletedTasks int
	FailedTasks    int
	CancelledTasks int
}

// Scheduler is a cooperative, priority-aware task scheduler. Construct with
// New, register executors, add tasks, then call Start to begin dispatching
// against the host's frame primitive.
type Scheduler struct {
	mu sync.Mutex

	opts  Options
	clock Clock

	executors map[string]ExecutorFunc
	tasks     map[string]*task
	ready     *readyQueue

	seq          uint64
	runningCount int
	started      bool
	stopFrame    CancelFunc

	cron *cron.Cron

	emitter *emitter
	metrics *schedulerMetrics
	tracer  schedulerTracer
}

// New constructs a Scheduler with the given options, applying documented
// defaults for anything left zero.
func New(opts Options) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		opts:      opts,
		clock:     opts.Clock,
		executors: make(map[string]ExecutorFunc),
		tasks:     make(map[string]*task),
		ready:     newReadyQueue(),
		emitter:   newEmitter(),
		metrics:   newSchedulerMetrics(opts.Meter),
		tracer:    schedulerTracer{tracer: opts.Tracer},
	}
}

// RegisterExecutor stores the executor for a task type, replacing any prior
// mapping (spec §4.2).
func (sc *Scheduler) RegisterExecutor(taskType string, fn ExecutorFunc) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.executors[taskType] = fn
}

// AddTask validates and inserts a new task, returning its id. Validation
// errors (*ValidationError) are returned synchronously and mutate nothing
// (spec §4.1, §7).
func (sc *Scheduler) AddTask(desc TaskDescriptor) (string, error) {
	sc.mu.Lock()
	id, events, err := sc.addTaskLocked(desc)
	sc.mu.Unlock()

	if err != nil {
		return "", err
	}
	sc.emitAll(events)
	return id, nil
}

func (sc *Scheduler) addTaskLocked(desc TaskDescriptor) (string, []Event, error) {
	if sc.opts.QueueSizeLimit > 0 && len(sc.tasks) >= sc.opts.QueueSizeLimit {
		return "", nil, newValidationError(QueueFull, "", "Queue size limit reached (%d)", sc.opts.QueueSizeLimit)
	}

	id := desc.ID
	if id == "" {
		id = generateID()
	}
	if _, exists := sc.tasks[id]; exists {
		return "", nil, newValidationError(DuplicateID, id, "task %q already exists", id)
	}
	if _, ok := sc.executors[desc.Type]; !ok {
		return "", nil, newValidationError(NoExecutor, desc.Type, "No executor registered for type %q", desc.Type)
	}

	deps := make(map[string]struct{}, len(desc.Dependencies))
	for _, depID := range desc.Dependencies {
		if depID == id {
			continue // self-reference: reported as a cycle below
		}
		if _, ok := sc.tasks[depID]; !ok {
			return "", nil, newValidationError(UnknownDependency, depID, "unknown dependency %q", depID)
		}
		deps[depID] = struct{}{}
	}
	if sc.detectCycleLocked(id, desc.Dependencies) {
		return "", nil, newValidationError(DependencyCycle, id, "adding task %q would create a dependency cycle", id)
	}

	sc.seq++
	t := &task{
		id:                id,
		typ:               desc.Type,
		data:              desc.Data,
		originalPriority:  desc.Priority,
		effectivePriority: desc.Priority,
		dependencies:      deps,
		dependents:        make(map[string]struct{}),
		retryCount:        desc.RetryCount,
		retryStrategy:     desc.RetryStrategy,
		timeout:           desc.Timeout,
		interruptible:     desc.Interruptible,
		onProgress:        desc.OnProgress,
		status:            Pending,
		enqueuedAt:        sc.clock.Now(),
		enqueueSeq:        sc.seq,
		heapIndex:         -1,
	}
	sc.tasks[id] = t
	sc.linkDependentsLocked(t)
	sc.propagatePriorityLocked(t)

	events := []Event{{Type: TaskAdded, TaskID: id, Priority: t.effectivePriority}}

	if sc.dependenciesSatisfiedLocked(t) {
		sc.ready.insert(t)
	}

	sc.metrics.tasksAdded.Add(context.Background(), 1)

	return id, events, nil
}

// CancelTask cancels a pending or (if interruptible) running task. It
// returns false if the id is unknown, already terminal, or names a
// non-interruptible running task — per spec §4.7, those are left to run to
// completion untouched.
func (sc *Scheduler) CancelTask(id string) bool {
	sc.mu.Lock()
	ok, events := sc.cancelTaskLocked(id)
	sc.mu.Unlock()

	sc.emitAll(events)
	return ok
}

func (sc *Scheduler) cancelTaskLocked(id string) (bool, []Event) {
	t, exists := sc.tasks[id]
	if !exists || t.status.terminal() {
		return false, nil
	}

	switch t.status {
	case Pending:
		sc.ready.remove(t)
		if t.cancelRetryTimer != nil {
			t.cancelRetryTimer()
			t.cancelRetryTimer = nil
		}
	case Running:
		if !t.interruptible {
			return false, nil
		}
		if t.attemptCancel != nil {
			t.attemptCancel()
		}
	default:
		return false, nil
	}

	t.status = Cancelled
	t.err = newExecutionError(Cancellation, nil)
	t.finishedAt = sc.clock.Now()
	if t.signal != nil {
		t.signal.abort("Cancelled by caller")
	}

	events := []Event{{Type: TaskCancelled, TaskID: id, Priority: t.effectivePriority, Err: t.err, Reason: "Cancelled by caller"}}
	sc.cascadeTerminalLocked(t, &events)
	sc.metrics.tasksCancelled.Add(context.Background(), 1)

	return true, events
}

// GetTaskStatus returns the task's current status, or Unknown if the id has
// never existed or has already been swept away.
func (sc *Scheduler) GetTaskStatus(id string) Status {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	t, ok := sc.tasks[id]
	if !ok {
		return Unknown
	}
	return t.status
}

// GetStats returns a snapshot of task counts by status.
func (sc *Scheduler) GetStats() Stats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var s Stats
	s.TotalTasks = len(sc.tasks)
	for _, t := range sc.tasks {
		switch t.status {
		case Pending:
			s.PendingTasks++
		case Running:
			s.RunningTasks++
		case Completed:
			s.CompletedTasks++
		case Failed:
			s.FailedTasks++
		case Cancelled:
			s.CancelledTasks++
		}
	}
	return s
}

// On registers an event listener, returning a token usable with Off.
func (sc *Scheduler) On(evt EventType, fn Listener) uint64 {
	return sc.emitter.On(evt, fn)
}

// Off removes a previously registered listener.
func (sc *Scheduler) Off(evt EventType, token uint64) {
	sc.emitter.Off(evt, token)
}

// Clear removes all tasks regardless of status (spec §4.9). Goroutines
// already in flight for RUNNING tasks are not stopped; they keep their
// concurrency slot and free it themselves through the normal
// finishAttemptLocked path once they return, so runningCount is left alone
// here rather than zeroed — zeroing it would double-free those slots and
// drive it negative.
func (sc *Scheduler) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tasks = make(map[string]*task)
	sc.ready = newReadyQueue()
}

func (sc *Scheduler) emitAll(events []Event) {
	for _, e := range events {
		sc.emitter.Emit(e)
	}
}
