package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestSeqStopsAtFirstClaim(t *testing.T) {
	var ran []string
	never := func(name string) Pipe[int] {
		return func(context.Context, int) (bool, error) {
			ran = append(ran, name)
			return false, nil
		}
	}
	claims := func(name string) Pipe[int] {
		return func(context.Context, int) (bool, error) {
			ran = append(ran, name)
			return true, nil
		}
	}

	p := Seq(never("a"), claims("b"), never("c"))
	claimed, err := p(context.Background(), 0)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !claimed {
		t.Fatalf("expected claimed = true")
	}
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Fatalf("ran = %v, want [a b]", ran)
	}
}

func TestSeqPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	p := Seq(Fail[int](boom))
	_, err := p(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestCondBranches(t *testing.T) {
	yes := Pipe[int](func(context.Context, int) (bool, error) { return true, nil })
	no := Pipe[int](func(context.Context, int) (bool, error) { return false, nil })

	isEven := func(n int) bool { return n%2 == 0 }

	p := Cond(isEven, yes, no)
	claimed, _ := p(context.Background(), 4)
	if !claimed {
		t.Fatalf("even branch should claim")
	}
	claimed, _ = p(context.Background(), 3)
	if claimed {
		t.Fatalf("odd branch should not claim")
	}
}

func TestWithAbortsOnSetupError(t *testing.T) {
	boom := errors.New("setup failed")
	calledInner := false
	inner := Pipe[int](func(context.Context, int) (bool, error) {
		calledInner = true
		return true, nil
	})

	p := With(func(context.Context, int) error { return boom }, inner)
	_, err := p(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calledInner {
		t.Fatalf("inner should not run when setup fails")
	}
}
