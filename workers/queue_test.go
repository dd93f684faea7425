package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"stagebased/config"
	"stagebased/errors"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	q := NewQueue(config.WorkersConfig{Count: 1, QueueSize: 4, RetryMax: 3, RetryBase: time.Millisecond}, zerolog.Nop())
	q.Start(context.Background())

	var attempts atomic.Int32
	done := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), Task{
		Name: "flaky",
		Run: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return errors.New("not yet")
			}
			close(done)
			return nil
		},
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task never succeeded")
	}
	q.Stop()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueue_NoRetryRunsOnce(t *testing.T) {
	q := NewQueue(config.WorkersConfig{Count: 1, QueueSize: 4, RetryMax: 5, RetryBase: time.Millisecond}, zerolog.Nop())
	var attempts atomic.Int32
	var failed atomic.Bool
	q.onDone = func(_ string, err error) { failed.Store(err != nil) }
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Task{
		Name: "permanent",
		Run: func(context.Context) error {
			attempts.Add(1)
			return NoRetry(errors.New("bad input"))
		},
	}))
	q.Stop()

	assert.Equal(t, int32(1), attempts.Load())
	assert.True(t, failed.Load())
}

func TestQueue_FullAndStopped(t *testing.T) {
	q := NewQueue(config.WorkersConfig{Count: 1, QueueSize: 1}, zerolog.Nop())
	noop := Task{Name: "noop", Run: func(context.Context) error { return nil }}

	// not started: the buffer fills up
	require.NoError(t, q.Enqueue(context.Background(), noop))
	err := q.Enqueue(context.Background(), noop)
	assert.True(t, errors.Is(err, ErrQueueFull))

	q.Stop()
	err = q.Enqueue(context.Background(), noop)
	assert.True(t, errors.Is(err, ErrQueueStopped))
}

func TestQueue_StopDrainsAfterStartContextCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	q := NewQueue(config.WorkersConfig{Count: 1, QueueSize: 8}, zerolog.Nop())
	q.Start(parent)

	release := make(chan struct{})
	var ran, interrupted atomic.Int32
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Task{
			Name: "slow",
			Run: func(ctx context.Context) error {
				<-release
				if ctx.Err() != nil {
					interrupted.Add(1)
				}
				ran.Add(1)
				return nil
			},
		}))
	}

	cancel()
	close(release)
	q.Stop()

	assert.Equal(t, int32(4), ran.Load())
	assert.Equal(t, int32(0), interrupted.Load())
}

func TestQueue_EagerReturnsError(t *testing.T) {
	q := NewQueue(config.WorkersConfig{Eager: true}, zerolog.Nop())
	boom := errors.New("boom")

	err := q.Enqueue(context.Background(), Task{Name: "x", Run: func(context.Context) error { return boom }})
	assert.True(t, errors.Is(err, boom))
}

func TestQueue_Backoff(t *testing.T) {
	q := NewQueue(config.WorkersConfig{RetryBase: 100 * time.Millisecond}, zerolog.Nop())
	d := q.backoff(3)
	assert.GreaterOrEqual(t, d, 320*time.Millisecond)
	assert.LessOrEqual(t, d, 480*time.Millisecond)
	assert.Equal(t, maxBackoff, q.backoff(20))
}
