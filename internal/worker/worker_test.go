package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllSubmittedJobsIncludingChildren(t *testing.T) {
	p := New(2, 20*time.Millisecond)
	var ran atomic.Int64

	var submit func(depth int)
	submit = func(depth int) {
		p.Submit(func(ctx context.Context) error {
			ran.Add(1)
			if depth > 0 {
				// simulate a parser that discovers a child only
				// after doing some work, so the queue can look
				// momentarily empty before this fires.
				time.Sleep(5 * time.Millisecond)
				submit(depth - 1)
			}
			return nil
		})
	}
	submit(5)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := ran.Load(); got != 6 {
		t.Fatalf("ran %d jobs, want 6 (one per depth level)", got)
	}
	if p.Outstanding() != 0 {
		t.Fatalf("outstanding = %d after drain, want 0", p.Outstanding())
	}
}

func TestPoolIsolatesPanickingJob(t *testing.T) {
	p := New(1, 10*time.Millisecond)
	var ranAfterPanic atomic.Bool

	p.Submit(func(ctx context.Context) error {
		panic("boom")
	})
	p.Submit(func(ctx context.Context) error {
		ranAfterPanic.Store(true)
		return nil
	})

	err := p.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the panic to surface as a job error")
	}
	if !ranAfterPanic.Load() {
		t.Fatalf("pool should keep running other jobs after one panics")
	}
}

func TestSubmitAfterDrainPanics(t *testing.T) {
	p := New(1, 5*time.Millisecond)
	p.Submit(func(context.Context) error { return nil })
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Submit after drain to panic")
		}
	}()
	p.Submit(func(context.Context) error { return nil })
}
