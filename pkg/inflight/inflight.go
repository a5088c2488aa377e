// Package inflight collapses concurrent identical calls into one.
//
// Calls are keyed by a caller-supplied string (the request fingerprint). While
// a call for a key is running, every further Do with the same key waits for
// that call and receives its value and error. The key is released as soon as
// the call settles, successfully or not.
package inflight

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/MailerSuite/Final-sub009/errors"
)

// Registry tracks outstanding calls producing values of type T.
// The zero value is not usable; construct with New.
type Registry[T any] struct {
	group   singleflight.Group
	pending atomic.Int64
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Do runs fn, or joins an already running call with the same key.
//
// With deduplicate false, fn is invoked directly with ctx and the registry is
// not consulted. Otherwise the shared call runs with a context detached from
// cancellation, so a caller leaving early never aborts the call others are
// waiting on; that caller gets ctx.Err() while the call runs to completion.
// The returned bool reports whether the result was delivered to more than one
// caller.
func (r *Registry[T]) Do(ctx context.Context, key string, deduplicate bool, fn func(context.Context) (T, error)) (T, bool, error) {
	if !deduplicate {
		v, err := fn(ctx)
		return v, false, err
	}

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		r.pending.Add(1)
		defer r.pending.Add(-1)
		return fn(detached)
	})

	select {
	case res := <-ch:
		v, _ := res.Val.(T)
		return v, res.Shared, res.Err
	case <-ctx.Done():
		var zero T
		return zero, false, errors.Wrap(ctx.Err(), "inflight", "Do", "wait for shared call")
	}
}

// Forget releases key so the next Do starts a fresh call even if the current
// one has not settled. Callers already waiting still receive its result.
func (r *Registry[T]) Forget(key string) {
	r.group.Forget(key)
}

// Len returns the number of calls currently executing.
func (r *Registry[T]) Len() int {
	return int(r.pending.Load())
}
