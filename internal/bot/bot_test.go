package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingListener struct{ started atomic.Bool }

func (l *blockingListener) Start(ctx context.Context) {
	l.started.Store(true)
	<-ctx.Done()
}

type returningListener struct{}

func (returningListener) Start(context.Context) {}

type fakeScheduler struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (s *fakeScheduler) Start() error {
	s.started.Store(true)
	return s.startErr
}

func (s *fakeScheduler) Stop() error {
	s.stopped.Store(true)
	return nil
}

type opsFunc func(ctx context.Context) error

func (f opsFunc) Run(ctx context.Context) error { return f(ctx) }

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) Close() error {
	c.n.Add(1)
	return nil
}

func runAsync(ctx context.Context, b *Bot) <-chan error {
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunGracefulShutdown(t *testing.T) {
	listener := &blockingListener{}
	sched := &fakeScheduler{}
	closer := &countingCloser{}
	var opsStopped atomic.Bool
	ops := opsFunc(func(ctx context.Context) error {
		<-ctx.Done()
		opsStopped.Store(true)
		return nil
	})

	b := NewBot(quietLogger(), listener, sched, WithOpsServer(ops), WithClosers(closer))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, b)

	require.Eventually(t, func() bool { return listener.started.Load() && sched.started.Load() },
		2*time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, waitResult(t, done))
	assert.True(t, sched.stopped.Load())
	assert.True(t, opsStopped.Load())
	assert.Equal(t, int32(1), closer.n.Load())
}

func TestRunListenerStopsUnexpectedly(t *testing.T) {
	sched := &fakeScheduler{}
	closer := &countingCloser{}
	b := NewBot(quietLogger(), returningListener{}, sched, WithClosers(closer))

	err := waitResult(t, runAsync(context.Background(), b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped unexpectedly")
	assert.Equal(t, int32(1), closer.n.Load())
}

func TestRunSchedulerFailure(t *testing.T) {
	sched := &fakeScheduler{startErr: errors.New("bad cron")}
	b := NewBot(quietLogger(), &blockingListener{}, sched)

	err := waitResult(t, runAsync(context.Background(), b))
	assert.ErrorIs(t, err, sched.startErr)
}

func TestRunOpsFailure(t *testing.T) {
	listenErr := errors.New("address already in use")
	ops := opsFunc(func(context.Context) error { return listenErr })
	b := NewBot(quietLogger(), &blockingListener{}, nil, WithOpsServer(ops))

	err := waitResult(t, runAsync(context.Background(), b))
	assert.ErrorIs(t, err, listenErr)
}
