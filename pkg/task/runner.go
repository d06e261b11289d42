package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Runner errors.
var (
	// ErrStopTimeout indicates the loop did not acknowledge
	// cancellation within the stop timeout.
	ErrStopTimeout = errors.New("background task did not stop in time")
)

// DefaultStopTimeout bounds how long Stop waits for the loop to
// acknowledge termination.
const DefaultStopTimeout = 5 * time.Second

// State represents the runner lifecycle.
type State uint8

const (
	// StateIdle - runner created but not started.
	StateIdle State = iota

	// StateRunning - loop is active.
	StateRunning

	// StateCancelling - stop requested, loop not yet confirmed done.
	StateCancelling

	// StateStopped - loop has fully terminated.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateCancelling:
		return "CANCELLING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// UpdateFunc performs one periodic update.
type UpdateFunc func(ctx context.Context) error

// LivenessFunc reports whether the underlying transport is still up.
type LivenessFunc func() bool

// Runner drives a periodic update loop with cooperative cancellation.
type Runner struct {
	interval    time.Duration
	update      UpdateFunc
	alive       LivenessFunc
	logger      *slog.Logger
	stopTimeout time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a runner in StateIdle. alive may be nil, in which
// case every failure is treated as transient. logger may be nil.
func NewRunner(interval time.Duration, update UpdateFunc, alive LivenessFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		interval:    interval,
		update:      update,
		alive:       alive,
		logger:      logger,
		stopTimeout: DefaultStopTimeout,
		state:       StateIdle,
	}
}

// SetStopTimeout bounds how long Stop waits for acknowledgement.
func (r *Runner) SetStopTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.stopTimeout = d
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start launches the loop. Starting an already-started or stopped
// runner is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = StateRunning
	go r.loop(ctx, r.done)
}

// Stop signals cancellation and blocks until the loop confirms
// termination or the stop timeout elapses. Stop is idempotent: calling
// it twice, or on a runner that never started, is a no-op.
func (r *Runner) Stop() error {
	r.mu.Lock()
	switch r.state {
	case StateIdle:
		r.state = StateStopped
		r.mu.Unlock()
		return nil
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateRunning:
		r.state = StateCancelling
		r.cancel()
	}
	done := r.done
	timeout := r.stopTimeout
	r.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// loop is the background task body. It only suspends in the interval
// sleep and the update call, and checks for cancellation after both.
func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.state = StateStopped
		r.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := r.update(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if r.alive != nil && !r.alive() {
				r.logger.Info("transport stopped, ending periodic updates")
				return
			}
			// Transient: retried on the next tick.
			r.logger.Debug("periodic update failed", "error", err)
		}
	}
}
