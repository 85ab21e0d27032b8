// Package parallel provides an all-settle fan-out combinator. Unlike
// errgroup, a failing task never cancels its siblings: every task runs
// to completion and reports its own outcome.
package parallel

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Result is the settled outcome of one fanned-out task.
type Result[T any] struct {
	Value T
	Err   error
}

// Map runs fn for every item concurrently and waits for all of them.
// Results are returned in input order regardless of completion order.
func Map[I, O any](ctx context.Context, items []I, fn func(context.Context, I) (O, error)) []Result[O] {
	results := make([]Result[O], len(items))

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := fn(ctx, items[i])
			results[i] = Result[O]{Value: value, Err: err}
		}()
	}
	wg.Wait()

	return results
}

// Successes returns the values of the settled results in order,
// skipping failures.
func Successes[O any](results []Result[O]) []O {
	values := make([]O, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// Errors combines the failures of the settled results into a single
// error, or nil when every task succeeded.
func Errors[O any](results []Result[O]) error {
	var combined error
	for _, r := range results {
		if r.Err != nil {
			combined = multierr.Append(combined, r.Err)
		}
	}
	return combined
}
