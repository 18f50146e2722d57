package kdf

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many derivations run at once.
// A nil *Limiter runs work inline without bounding.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a Limiter admitting n concurrent derivations.
// n <= 0 selects 2*NumCPU.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 2 * runtime.NumCPU()
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn once a slot is free. It returns ctx.Err() if the context ends while waiting;
// once fn has started it always runs to completion.
func (l *Limiter) Do(ctx context.Context, fn func()) error {
	if l == nil {
		fn()
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)

	fn()
	return nil
}

// Derive is Derive run under the limiter.
func (l *Limiter) Derive(ctx context.Context, p Params, password, salt []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	if waitErr := l.Do(ctx, func() { out, err = Derive(p, password, salt) }); waitErr != nil {
		return nil, waitErr
	}
	return out, err
}
