package retry

import (
	"context"
	"fmt"
)

// DoWithResultTyped runs fn under r and returns its result as T.
// A nil result from a successful attempt yields the zero value of T.
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("retry: unexpected result type %T", result)
	}
	return typed, nil
}
