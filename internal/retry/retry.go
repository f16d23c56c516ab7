// Package retry waits for records that become visible asynchronously.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrNotVisible is returned when every attempt came back empty.
var ErrNotVisible = errors.New("not visible after retries")

type Policy struct {
	Attempts int
	Delay    time.Duration
}

// PollUntil calls fn up to p.Attempts times, sleeping p.Delay between calls,
// until fn reports the value as found. A non-nil error from fn aborts polling.
func PollUntil[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	for i := 0; i < attempts; i++ {
		v, ok, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, ErrNotVisible
}

// PollOrCreate polls for the value and falls back to create when it never appears.
func PollOrCreate[T any](ctx context.Context, p Policy, poll func(ctx context.Context) (T, bool, error), create func(ctx context.Context) (T, error)) (T, error) {
	v, err := PollUntil(ctx, p, poll)
	if errors.Is(err, ErrNotVisible) {
		return create(ctx)
	}
	return v, err
}
