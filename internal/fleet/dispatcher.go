package fleet

import (
	"context"
	"fmt"
	"sync"
)

// Result pairs one target with the value (or error) its operation
// produced. The pairing is established positionally at dispatch time and
// survives out-of-order completion.
type Result[T any] struct {
	Worker Worker
	Value  T
	Err    error
}

// Dispatch runs op against every target concurrently and returns one
// result per target, index-aligned with the input slice regardless of
// completion order. All invocations are launched before any is awaited,
// so total latency is bounded by the slowest target.
//
// A failing or panicking operation never disturbs its siblings: the error
// is recorded in that target's slot and every other slot still completes.
// There is no concurrency cap — the target set is a fleet, not an
// unbounded queue.
//
// If ctx is cancelled before all operations finish, Dispatch returns
// ctx.Err() and the partial results are discarded; in-flight operations
// are not forcibly stopped, their results simply go nowhere.
func Dispatch[T any](ctx context.Context, targets []Worker, op func(context.Context, Worker) (T, error)) ([]Result[T], error) {
	results := make([]Result[T], len(targets))

	var wg sync.WaitGroup
	for i, w := range targets {
		results[i].Worker = w

		wg.Add(1)
		go func(i int, w Worker) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results[i].Err = fmt.Errorf("operation on bot %q panicked: %v", w.Name(), rec)
				}
			}()

			value, err := op(ctx, w)
			results[i].Value = value
			results[i].Err = err
		}(i, w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DispatchValue is Dispatch for operations that cannot fail with an
// error; the plain value is wrapped into the result slot.
func DispatchValue[T any](ctx context.Context, targets []Worker, op func(context.Context, Worker) T) ([]Result[T], error) {
	return Dispatch(ctx, targets, func(ctx context.Context, w Worker) (T, error) {
		return op(ctx, w), nil
	})
}
