package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Bus errors.
var (
	// ErrUnknownMember indicates the member id was never subscribed.
	ErrUnknownMember = errors.New("unknown bus member")

	// ErrUnsubscribed indicates the member was unsubscribed while a
	// WaitForEvent call was pending.
	ErrUnsubscribed = errors.New("member unsubscribed")
)

// MemberID is the opaque handle returned by Subscribe.
type MemberID string

// Config configures bus behaviour.
type Config struct {
	// MaxQueueLen bounds each member's queue. Zero means unbounded;
	// with a bound, the oldest event is dropped when a new one would
	// exceed it. Unbounded growth is the caller's resource risk.
	MaxQueueLen int
}

// member is one subscriber's queue plus its wakeup signalling.
type member struct {
	queue   []Event
	ready   chan struct{} // buffered(1), signals non-empty queue
	removed chan struct{} // closed on unsubscribe
	dropped uint64
}

// Bus is a multi-subscriber broadcast queue of events.
type Bus struct {
	mu      sync.Mutex
	config  Config
	members map[MemberID]*member
}

// New creates a bus with the given configuration.
func New(config Config) *Bus {
	return &Bus{
		config:  config,
		members: make(map[MemberID]*member),
	}
}

// Subscribe registers a new member and returns its handle. The member
// receives an independent copy of every event emitted from now on.
func (b *Bus) Subscribe() MemberID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := MemberID(uuid.NewString())
	b.members[id] = &member{
		ready:   make(chan struct{}, 1),
		removed: make(chan struct{}),
	}
	return id
}

// Unsubscribe removes a member. Events emitted afterwards are not
// delivered, and pending WaitForEvent calls for the member resolve with
// ErrUnsubscribed. Unsubscribing an unknown member is a no-op.
func (b *Bus) Unsubscribe(id MemberID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.members[id]
	if !ok {
		return
	}
	delete(b.members, id)
	close(m.removed)
}

// Emit appends the event to every currently-subscribed queue. It never
// suspends on slow consumers: with a configured bound the oldest queued
// event is dropped instead.
func (b *Bus) Emit(kind Kind, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	event := Event{Kind: kind, Args: args}
	for _, m := range b.members {
		if b.config.MaxQueueLen > 0 && len(m.queue) >= b.config.MaxQueueLen {
			m.queue = m.queue[1:]
			m.dropped++
		}
		m.queue = append(m.queue, event)
		select {
		case m.ready <- struct{}{}:
		default:
		}
	}
}

// WaitForEvent suspends until the member's queue is non-empty, then pops
// and returns the oldest event. It resolves early with ErrUnsubscribed if
// the member is removed, or with ctx.Err() on cancellation.
func (b *Bus) WaitForEvent(ctx context.Context, id MemberID) (Event, error) {
	for {
		b.mu.Lock()
		m, ok := b.members[id]
		if !ok {
			b.mu.Unlock()
			return Event{}, ErrUnknownMember
		}
		if len(m.queue) > 0 {
			event := m.queue[0]
			m.queue = m.queue[1:]
			// Keep the signal armed if more events remain, so a
			// subsequent wait doesn't block behind a drained channel.
			if len(m.queue) > 0 {
				select {
				case m.ready <- struct{}{}:
				default:
				}
			}
			b.mu.Unlock()
			return event, nil
		}
		ready, removed := m.ready, m.removed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-removed:
			return Event{}, ErrUnsubscribed
		case <-ready:
		}
	}
}

// Members returns the current subscriber count.
func (b *Bus) Members() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members)
}

// Dropped returns how many events a member has lost to its queue bound.
func (b *Bus) Dropped(id MemberID) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.members[id]
	if !ok {
		return 0
	}
	return m.dropped
}
