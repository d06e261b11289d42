// Package task implements the cancellable background loop used by
// stateful handlers for periodic device polling.
//
// A Runner sleeps a fixed interval, performs one update call, and
// repeats. Update failures are transient and retried on the next tick
// unless the liveness probe reports the transport has stopped, in which
// case the loop exits cleanly. Cancellation is cooperative: Stop signals
// the loop, then blocks - bounded by the stop timeout - until the loop
// acknowledges termination. Stop is idempotent, including when the
// runner never started.
package task
