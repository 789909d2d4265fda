// Package scheduler implements a cooperative, priority-aware task scheduler
// meant to live inside a single-threaded event-loop host (a browser-style
// render loop, an embedded UI runtime, or any caller that can promise to
// invoke a callback once per frame). It orders submitted tasks by priority
// and dependency DAG, dispatches them against a concurrency cap and a
// per-frame time budget, and reports lifecycle events, progress, retries,
// timeouts and cancellation back to the host.
//
// The scheduler never performs the work itself — callers register
// executors per task type and the scheduler only decides when and in what
// order to invoke them.
package scheduler
