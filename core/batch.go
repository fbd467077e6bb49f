package core

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunBatched calls fn for every index in [0, n) with at most limit calls in flight
// (limit <= 0 means no limit). delay spaces out the start of consecutive calls.
// A failing call never stops the others; failures come back in index order, keyed by key(i).
func RunBatched(
	ctx context.Context,
	n, limit int,
	delay time.Duration,
	key func(i int) string,
	fn func(ctx context.Context, i int) error,
) []Failure {
	if n == 0 {
		return nil
	}

	errs := make([]error, n) // one slot per goroutine, no locking needed

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		i := i
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		if delay > 0 && i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				errs[i] = ctx.Err()
				continue
			}
		}
		g.Go(func() error {
			if err := fn(ctx, i); err != nil {
				errs[i] = err
			}
			return nil // collected above; one failure must not cancel the rest
		})
	}
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{Key: key(i), Err: Message(err)})
		}
	}
	return failures
}
