// Package worker bounds how many generation jobs run at once so that the
// chat listener never blocks on the model.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrJobPanicked is returned in a Result when the job panicked.
var ErrJobPanicked = errors.New("job panicked")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Job is a unit of work producing text.
type Job func(ctx context.Context) (string, error)

// Result carries the outcome of a Job.
type Result struct {
	Text string
	Err  error
}

// Pool runs jobs on goroutines gated by a weighted semaphore.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a pool running at most size jobs concurrently. Sizes below one
// are raised to one.
func New(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logger.With("component", "worker_pool"),
	}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Submit schedules job and returns a channel that receives exactly one
// Result. Waiting for a free slot honours ctx.
func (p *Pool) Submit(ctx context.Context, job Job) <-chan Result {
	out := make(chan Result, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		out <- Result{Err: ErrClosed}
		return out
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.logger.Debug("Failed to acquire worker slot", "error", err)
			out <- Result{Err: err}
			return
		}
		defer p.sem.Release(1)
		out <- p.run(ctx, job)
	}()
	return out
}

// Do submits job and waits for its result.
func (p *Pool) Do(ctx context.Context, job Job) (string, error) {
	res := <-p.Submit(ctx, job)
	return res.Text, res.Err
}

func (p *Pool) run(ctx context.Context, job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panicked", "panic", r, "stack", string(debug.Stack()))
			res = Result{Err: fmt.Errorf("%w: %v", ErrJobPanicked, r)}
		}
	}()
	text, err := job(ctx)
	return Result{Text: text, Err: err}
}

// Close rejects new jobs and waits for submitted ones to finish. It always
// returns nil.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
