package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(2, quietLogger())
	defer p.Close()

	var running, peak atomic.Int32
	job := func(context.Context) (string, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return "ok", nil
	}

	var results []<-chan Result
	for range 8 {
		results = append(results, p.Submit(context.Background(), job))
	}
	for _, ch := range results {
		res := <-ch
		require.NoError(t, res.Err)
		assert.Equal(t, "ok", res.Text)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	p := New(1, quietLogger())
	defer p.Close()

	_, err := p.Do(context.Background(), func(context.Context) (string, error) {
		panic("boom")
	})
	require.ErrorIs(t, err, ErrJobPanicked)
	assert.Contains(t, err.Error(), "boom")

	text, err := p.Do(context.Background(), func(context.Context) (string, error) {
		return "still alive", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "still alive", text)
}

func TestPoolPropagatesJobErrors(t *testing.T) {
	t.Parallel()

	p := New(1, quietLogger())
	defer p.Close()

	want := errors.New("model failed")
	_, err := p.Do(context.Background(), func(context.Context) (string, error) {
		return "", want
	})
	assert.ErrorIs(t, err, want)
}

func TestPoolHonoursContextWhileQueued(t *testing.T) {
	t.Parallel()

	p := New(1, quietLogger())
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	first := p.Submit(context.Background(), func(context.Context) (string, error) {
		close(started)
		<-release
		return "first", nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	queued := p.Submit(ctx, func(context.Context) (string, error) {
		return "never", nil
	})
	cancel()

	res := <-queued
	assert.ErrorIs(t, res.Err, context.Canceled)

	close(release)
	assert.Equal(t, "first", (<-first).Text)
}

func TestPoolClose(t *testing.T) {
	t.Parallel()

	p := New(0, quietLogger())
	assert.Equal(t, 1, p.Size())

	var wg sync.WaitGroup
	wg.Add(1)
	ch := p.Submit(context.Background(), func(context.Context) (string, error) {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		return "done", nil
	})
	require.NoError(t, p.Close())
	wg.Wait()
	assert.Equal(t, "done", (<-ch).Text)

	_, err := p.Do(context.Background(), func(context.Context) (string, error) { return "", nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolWithoutLogger(t *testing.T) {
	t.Parallel()

	p := New(1, nil)
	defer p.Close()

	v, err := p.Do(context.Background(), func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = p.Do(context.Background(), func(context.Context) (string, error) { panic("boom") })
	assert.ErrorIs(t, err, ErrJobPanicked)
}
