package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// startRetentionSweeper arms the periodic retention sweep using robfig/cron,
// the same library the teacher's services/orchestrator/scheduler.go uses to
// drive periodic workflow runs. The sweep interval is exposed as the
// SweepInterval option (spec §9 open question), defaulting to 10s.
func (sc *Scheduler) startRetentionSweeper() {
	sc.cron = cron.New()
	spec := fmt.Sprintf("@every %s", sc.opts.SweepInterval)
	_, err := sc.cron.AddFunc(spec, sc.sweep)
	if err != nil {
		// An unparseable spec falls back to the documented default.
		// withDefaults already replaces a non-positive SweepInterval with
		// 10s, so this is only a safeguard.
		_, _ = sc.cron.AddFunc("@every 10s", sc.sweep)
	}
	sc.cron.Start()
}

func (sc *Scheduler) stopRetentionSweeper() {
	if sc.cron != nil {
		ctx := sc.cron.Stop()
		<-ctx.Done()
		sc.cron = nil
	}
}

// sweep removes terminal tasks whose retention period has elapsed (spec
// §4.9). getTaskStatus returns the "unknown" sentinel for removed ids
// thereafter.
func (sc *Scheduler) sweep() {
	sc.mu.Lock()
	now := sc.clock.Now()
	for id, t := range sc.tasks {
		if !t.status.terminal() {
			continue
		}
		if now.Sub(t.finishedAt) > sc.opts.RetentionPeriod {
			delete(sc.tasks, id)
		}
	}
	sc.mu.Unlock()
}
