package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDelay computes how long to wait before the attempt-th retry (attempt
// counts from 1 for the first retry), per spec §4.7. Delegated to
// cenkalti/backoff/v4 — FIXED maps to a constant interval, EXPONENTIAL to
// the library's exponential backoff with randomization disabled so
// successive delays are strictly increasing (spec §8, property 5), which
// jittered backoff would not guarantee.
func (sc *Scheduler) retryDelay(strategy RetryStrategy, attempt int) time.Duration {
	switch strategy {
	case IMMEDIATE:
		return 0
	case FIXED:
		cb := backoff.NewConstantBackOff(sc.opts.BaseRetryDelay)
		return cb.NextBackOff()
	case EXPONENTIAL:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = sc.opts.BaseRetryDelay
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxInterval = sc.opts.MaxRetryDelay
		eb.MaxElapsedTime = 0
		eb.Reset()
		var d time.Duration
		for i := 0; i < attempt; i++ {
			d = eb.NextBackOff()
		}
		return d
	default:
		return sc.opts.BaseRetryDelay
	}
}
