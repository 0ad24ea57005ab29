// Package asyncx runs independent work concurrently and collects the results.
package asyncx

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// AsyncAll calls fn for every item concurrently and returns the results in
// item order. The first failure cancels the context passed to the remaining
// calls and is returned.
func AsyncAll[T any, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	return AsyncLimit(ctx, items, 0, fn)
}

// AsyncLimit is AsyncAll with at most limit calls in flight. A limit of zero
// or less means no limit.
func AsyncLimit[T any, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]R, len(items))
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForEach calls fn for every item with at most limit calls in flight.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) error) error {
	_, err := AsyncLimit(ctx, items, limit, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}
