// Package worker implements the bounded-concurrency job queue and
// worker pool that drains it.
//
// Draining a job queue by racing a non-blocking semaphore acquire
// against a short-timeout queue get is a race: a worker can be between
// "took the last job off the queue" and "enqueued that job's
// children" when every other worker observes an empty queue and exits
// early, silently truncating the scan. Pool avoids this with an
// explicit outstanding-jobs counter: every Submit increments it, every
// finished job (successful or not) decrements it, and a worker only
// treats the queue as drained when it is empty AND the counter is
// zero, not merely when a queue read times out.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bangscan/internal/bangerr"
)

// Job is one unit of work: scan one meta directory. It may itself
// call Submit to enqueue children it discovers before returning.
type Job func(ctx context.Context) error

// Pool is a bounded-concurrency FIFO worker pool draining a shared
// job queue, sized to a fixed worker count: one goroutine per
// configured slot, no unbounded goroutine growth.
type Pool struct {
	queue   chan Job
	workers int
	idle    time.Duration

	outstanding atomic.Int64

	mu     sync.Mutex
	closed bool
	err    error
}

// New creates a pool with the given worker count and the longest a
// worker will wait for the next job, while the outstanding count is
// zero, before deciding the queue is genuinely drained (not just
// momentarily empty between a dequeue and its children's enqueue).
func New(workers int, idleTimeout time.Duration) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:   make(chan Job, 4096),
		workers: workers,
		idle:    idleTimeout,
	}
}

// Submit enqueues a job. Safe to call from within a running job (a
// parser's Unpack discovering children) as well as before Run starts.
// Submit after the pool has been drained and Run has returned is a
// programming error and panics: fail fast on misuse of a closed
// resource.
func (p *Pool) Submit(j Job) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		panic("worker: Submit after pool drained")
	}
	p.mu.Unlock()

	p.outstanding.Add(1)
	p.queue <- j
}

// Run starts the configured number of workers and blocks until the
// queue is drained: empty, with zero outstanding jobs, confirmed by
// every worker independently observing that state across one full
// idle timeout. Returns the first job error seen, if any: one job's
// panic or error is isolated to that job and recorded as a
// WorkerException, not propagated to crash the whole pool — but it is
// surfaced here once draining completes so the caller can decide what
// to do with a partially-failed scan.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.runWorker(ctx)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	p.closed = true
	err := p.err
	p.mu.Unlock()
	return err
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(ctx, job)
			continue
		case <-time.After(p.idle):
		}

		// No job arrived within the idle window. Only declare the
		// queue drained if there is truly nothing outstanding;
		// otherwise another worker is still mid-job and may yet
		// enqueue more work, so keep waiting rather than exit.
		if p.outstanding.Load() == 0 && len(p.queue) == 0 {
			return
		}
	}
}

func (p *Pool) runJob(ctx context.Context, job Job) {
	defer p.outstanding.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.recordError(bangerr.New(bangerr.WorkerException, panicMessage(r)))
		}
	}()

	if err := job(ctx); err != nil {
		var be *bangerr.Error
		if !errors.As(err, &be) {
			err = bangerr.Wrap(bangerr.WorkerException, err)
		}
		p.recordError(err)
	}
}

func (p *Pool) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic in worker job"
}

// Outstanding reports the current number of submitted-but-not-yet-
// finished jobs, exposed for tests and diagnostics.
func (p *Pool) Outstanding() int64 { return p.outstanding.Load() }
