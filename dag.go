package scheduler

import "fmt"

// dagColor marks DFS visitation state for cycle detection.
type dagColor int

const (
	white dagColor = iota
	gray
	black
)

// detectCycleLocked checks whether linking a task with id newID and the
// given dependency ids into the existing graph would introduce a cycle.
// It runs a DFS from newID over a temporary view of the graph (the real
// task isn't linked yet), coloring nodes white/gray/black; a edge into a
// gray node is a back-edge, i.e. a cycle (spec §4, §9: "reject at insertion
// via DFS coloring rather than detect at dispatch").
func (sc *Scheduler) detectCycleLocked(newID string, deps []string) bool {
	colors := make(map[string]dagColor)
	edges := map[string][]string{newID: deps}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch colors[id] {
		case gray:
			return true // back-edge: cycle
		case black:
			return false
		}
		colors[id] = gray

		var next []string
		if e, ok := edges[id]; ok {
			next = e
		} else if t, ok := sc.tasks[id]; ok {
			next = t.dependencyIDs()
		}

		for _, dep := range next {
			if visit(dep) {
				return true
			}
		}
		colors[id] = black
		return false
	}

	return visit(newID)
}

// linkDependentsLocked records t as a dependent of each of its dependencies.
func (sc *Scheduler) linkDependentsLocked(t *task) {
	for depID := range t.dependencies {
		dep, ok := sc.tasks[depID]
		if !ok {
			continue
		}
		dep.dependents[t.id] = struct{}{}
	}
}

// propagatePriorityLocked raises the effective priority of every ancestor of
// t that currently sits below t's effective priority, recursing transitively
// (spec §4.3). Already-terminal ancestors are skipped — their priority no
// longer matters for dispatch.
func (sc *Scheduler) propagatePriorityLocked(t *task) {
	for depID := range t.dependencies {
		dep, ok := sc.tasks[depID]
		if !ok || dep.status.terminal() {
			continue
		}
		if dep.effectivePriority < t.effectivePriority {
			dep.effectivePriority = t.effectivePriority
			sc.ready.fix(dep)
			sc.propagatePriorityLocked(dep)
		}
	}
}

// dependenciesSatisfiedLocked reports whether every dependency of t has
// reached COMPLETED.
func (sc *Scheduler) dependenciesSatisfiedLocked(t *task) bool {
	for depID := range t.dependencies {
		dep, ok := sc.tasks[depID]
		if !ok || dep.status != Completed {
			return false
		}
	}
	return true
}

// cascadeTerminalLocked propagates the effect of t reaching a terminal
// status onto its dependents (spec §4.8), appending any resulting events to
// *events. It must be called with sc.mu held.
func (sc *Scheduler) cascadeTerminalLocked(t *task, events *[]Event) {
	for depID := range t.dependents {
		dep, ok := sc.tasks[depID]
		if !ok || dep.status.terminal() {
			continue
		}

		switch t.status {
		case Completed:
			if dep.status == Pending && sc.dependenciesSatisfiedLocked(dep) {
				sc.ready.insert(dep)
			}
		case Failed, Cancelled:
			sc.failDependencyLocked(dep, t, events)
		}
	}
}

// failDependencyLocked transitions dep to FAILED because predecessor never
// reached COMPLETED, then recurses into dep's own dependents. Dependents
// never retry on dependency failure (spec §4.7, §4.8).
func (sc *Scheduler) failDependencyLocked(dep, predecessor *task, events *[]Event) {
	sc.ready.remove(dep)
	dep.status = Failed
	dep.err = newExecutionError(DependencyFailed, fmt.Errorf("dependency %q did not complete (status %s)", predecessor.id, predecessor.status))
	dep.finishedAt = sc.clock.Now()

	*events = append(*events, Event{Type: TaskFailed, TaskID: dep.id, Priority: dep.effectivePriority, Err: dep.err})

	sc.cascadeTerminalLocked(dep, events)
}
