// Package eventbus implements the broadcast event bus consumers use to
// observe driver state changes.
//
// Each subscriber owns an independent FIFO queue: every event emitted
// after Subscribe is copied to every current member, so delivery is
// broadcast, not work-stealing. Emit never blocks on slow consumers; the
// queue bound is an explicit configuration choice (unbounded by default,
// drop-oldest when a bound is set). Unsubscribe resolves any pending
// WaitForEvent call with ErrUnsubscribed instead of leaving it pending.
package eventbus
