package domain

import "context"

// AwaitWithAbort races run against ctx. When ctx is cancelled first
// (including when it is already cancelled on entry) the call returns an
// *AbortError immediately; the backend request keeps executing remotely
// and its eventual result is discarded. This cancels the local wait only.
func AwaitWithAbort[T any](ctx context.Context, run func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &AbortError{Cause: err}
	}

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := run()
		done <- outcome{value, err}
	}()

	select {
	case <-ctx.Done():
		return zero, &AbortError{Cause: ctx.Err()}
	case result := <-done:
		return result.value, result.err
	}
}
