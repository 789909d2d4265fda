package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// schedulerMetrics mirrors the instrument layout of the teacher's
// DAGEngine/CancellationManager (services/orchestrator/dag_engine.go,
// cancellation.go): one counter per lifecycle outcome, a duration
// histogram, and a live gauge for queue depth.
type schedulerMetrics struct {
	tasksAdded     metric.Int64Counter
	tasksStarted   metric.Int64Counter
	tasksCompleted metric.Int64Counter
	tasksFailed    metric.Int64Counter
	tasksCancelled metric.Int64Counter
	retries        metric.Int64Counter
	taskDuration   metric.Float64Histogram
	readyDepth     metric.Int64Gauge
	running        metric.Int64Gauge
}

func newSchedulerMetrics(meter metric.Meter) *schedulerMetrics {
	m := &schedulerMetrics{}
	m.tasksAdded, _ = meter.Int64Counter("scheduler_tasks_added_total")
	m.tasksStarted, _ = meter.Int64Counter("scheduler_tasks_started_total")
	m.tasksCompleted, _ = meter.Int64Counter("scheduler_tasks_completed_total")
	m.tasksFailed, _ = meter.Int64Counter("scheduler_tasks_failed_total")
	m.tasksCancelled, _ = meter.Int64Counter("scheduler_tasks_cancelled_total")
	m.retries, _ = meter.Int64Counter("scheduler_task_retries_total")
	m.taskDuration, _ = meter.Float64Histogram("scheduler_task_duration_ms")
	m.readyDepth, _ = meter.Int64Gauge("scheduler_ready_queue_depth")
	m.running, _ = meter.Int64Gauge("scheduler_running_tasks")
	return m
}

// schedulerTracer wraps the tracer used to produce one span per dispatched
// attempt, matching services/orchestrator/dag_engine.go's "task.execute"
// spans.
type schedulerTracer struct {
	tracer trace.Tracer
}

func (t schedulerTracer) startAttempt(ctx context.Context, taskID, taskType string, attempt int) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "scheduler.task.execute",
		trace.WithAttributes(
			attribute.String("task_id", taskID),
			attribute.String("task_type", taskType),
			attribute.Int("attempt", attempt),
		),
	)
}
