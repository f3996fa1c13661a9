package resilience

import (
	"context"
	"fmt"
	"time"
)

// Within runs fn under a deadline derived from ctx and returns its result.
// When the deadline passes first, Within returns without waiting for fn and
// the error wraps context.DeadlineExceeded. A zero limit runs fn directly.
func Within[T any](ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(bounded)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-bounded.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s exceeded %v: %w", name, limit, context.DeadlineExceeded)
	}
}

// WithTimeout is Within for functions that only return an error.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	_, err := Within(ctx, limit, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
