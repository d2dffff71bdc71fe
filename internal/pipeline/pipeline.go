// Package pipeline implements the scan pipeline combinators: small,
// composable predicates over (environment, meta directory) that
// express "try this stage; if it claims the bytes, stop; otherwise
// fall through to the next stage."
//
// A pipe is a function that returns true if it fully accounted for
// the meta directory's bytes (so later stages in a seq should not
// run) and false otherwise. Combinators compose pipes without any
// stage needing to know what runs before or after it.
package pipeline

import "context"

// Pipe is one stage (or a composition of stages) in a scan pipeline.
// It returns true if it claimed the meta directory (no further stage
// in the enclosing Seq should run) and an error only for failures that
// should abort the whole scan job, not an ordinary "this stage didn't
// match".
type Pipe[E any] func(ctx context.Context, env E) (bool, error)

// Seq runs each pipe in order, stopping at the first one that returns
// true (claimed) or an error. Returns false if none claimed.
func Seq[E any](pipes ...Pipe[E]) Pipe[E] {
	return func(ctx context.Context, env E) (bool, error) {
		for _, p := range pipes {
			claimed, err := p(ctx, env)
			if err != nil {
				return false, err
			}
			if claimed {
				return true, nil
			}
		}
		return false, nil
	}
}

// Or is an alias for Seq emphasizing the "try this, or else this"
// reading used at the top level of the default pipeline.
func Or[E any](pipes ...Pipe[E]) Pipe[E] { return Seq(pipes...) }

// Cond runs then if test succeeds, else otherwise. Either branch may
// be nil, in which case that branch is a no-op (false, nil).
func Cond[E any](test func(E) bool, then, otherwise Pipe[E]) Pipe[E] {
	return func(ctx context.Context, env E) (bool, error) {
		if test(env) {
			if then == nil {
				return false, nil
			}
			return then(ctx, env)
		}
		if otherwise == nil {
			return false, nil
		}
		return otherwise(ctx, env)
	}
}

// Not inverts a boolean test function, for use with Cond.
func Not[E any](test func(E) bool) func(E) bool {
	return func(env E) bool { return !test(env) }
}

// With wraps inner, running setup(env) first; if setup returns an
// error the pipe aborts with that error without running inner. This
// is the combinator a context-establishing stage (e.g. "open the meta
// directory for read/write before any scan stage touches it") is
// expressed with.
func With[E any](setup func(context.Context, E) error, inner Pipe[E]) Pipe[E] {
	return func(ctx context.Context, env E) (bool, error) {
		if err := setup(ctx, env); err != nil {
			return false, err
		}
		return inner(ctx, env)
	}
}

// Pass always returns (false, nil): useful as a placeholder or as
// "this stage never claims, just produces a side effect" in With.
func Pass[E any](context.Context, E) (bool, error) { return false, nil }

// Fail always returns the given error.
func Fail[E any](err error) Pipe[E] {
	return func(context.Context, E) (bool, error) { return false, err }
}

// Exec adapts a stage iterator — a function that yields zero or more
// attempts, stopping and reporting claimed=true on the first attempt
// that succeeds — into a Pipe. The iterator is called once and is
// expected to stop trying candidates itself once one succeeds.
func Exec[E any](stageIter func(ctx context.Context, env E) (bool, error)) Pipe[E] {
	return Pipe[E](stageIter)
}
