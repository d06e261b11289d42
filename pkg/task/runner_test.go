package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerPerformsPeriodicUpdates(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil, nil)

	r.Start()
	defer func() { _ = r.Stop() }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, r.State())
}

func TestStopHaltsUpdates(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil, nil)

	r.Start()
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())

	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no update calls after Stop returned")
}

func TestStopIsIdempotent(t *testing.T) {
	r := NewRunner(5*time.Millisecond, func(context.Context) error { return nil }, nil, nil)
	r.Start()

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
}

func TestStopWithoutStartIsNoOp(t *testing.T) {
	r := NewRunner(5*time.Millisecond, func(context.Context) error { return nil }, nil, nil)
	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())

	// A stopped runner does not restart.
	r.Start()
	assert.Equal(t, StateStopped, r.State())
}

func TestTransientFailureIsRetried(t *testing.T) {
	var calls atomic.Int32
	alive := func() bool { return true }
	r := NewRunner(5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return assert.AnError
	}, alive, nil)

	r.Start()
	defer func() { _ = r.Stop() }()

	// Failing while the transport is alive: at least one retry.
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, StateRunning, r.State())
}

func TestFatalDisconnectEndsLoop(t *testing.T) {
	var calls atomic.Int32
	alive := func() bool { return false }
	r := NewRunner(5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return assert.AnError
	}, alive, nil)

	r.Start()

	require.Eventually(t, func() bool { return r.State() == StateStopped }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "dead transport must not be retried")

	// Cleanup after self-termination still works.
	require.NoError(t, r.Stop())
}

func TestFailureSucceedsAfterRecovery(t *testing.T) {
	var calls atomic.Int32
	r := NewRunner(5*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 1 {
			return assert.AnError
		}
		return nil
	}, func() bool { return true }, nil)

	r.Start()
	defer func() { _ = r.Stop() }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestStopTimeout(t *testing.T) {
	blocked := make(chan struct{})
	r := NewRunner(time.Millisecond, func(ctx context.Context) error {
		// Ignore cancellation to simulate a stuck update.
		<-blocked
		return nil
	}, nil, nil)
	r.SetStopTimeout(20 * time.Millisecond)

	r.Start()
	time.Sleep(10 * time.Millisecond)

	err := r.Stop()
	assert.ErrorIs(t, err, ErrStopTimeout)
	close(blocked)
}

func TestStopUnblocksSuspendedUpdate(t *testing.T) {
	r := NewRunner(time.Millisecond, func(ctx context.Context) error {
		// A well-behaved update suspends on its context.
		<-ctx.Done()
		return ctx.Err()
	}, nil, nil)

	r.Start()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())
}
