// Package retry reruns a whole operation with quadratic backoff.
package retry

import (
	"context"
	"strings"
	"time"

	"db-upsert/internal/errs"
)

// Action is one attempt. attempt starts at 0 for the initial call.
type Action[T any] func(ctx context.Context, attempt int) (T, error)

// AggregateError carries every error seen across attempts, oldest first.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "all attempts failed: " + strings.Join(msgs, "; ")
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// Delay returns the wait before retry number attempt (1-based): attempt² × initial.
func Delay(attempt int, initial time.Duration) time.Duration {
	return time.Duration(attempt*attempt) * initial
}

// RunWithBackoff makes one attempt plus up to maxRetries more. A result is accepted when
// the attempt succeeds and isAcceptable (nil accepts everything) agrees.
//
// When attempts run out and any attempt failed, every error is returned in an
// AggregateError. When they run out only because results were rejected, the zero value
// is returned with a nil error. Configuration errors stop the loop at once, and so does
// a done ctx.
func RunWithBackoff[T any](ctx context.Context, maxRetries int, action Action[T], isAcceptable func(T) bool, initialDelay time.Duration) (T, error) {
	var (
		zero   T
		failed []error
	)
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Delay(attempt, initialDelay)):
			case <-ctx.Done():
				return zero, &AggregateError{Errors: append(failed, ctx.Err())}
			}
		}

		v, err := action(ctx, attempt)
		if err != nil {
			failed = append(failed, err)
			if ctx.Err() != nil {
				failed = append(failed, ctx.Err())
				break
			}
			if errs.IsConfiguration(err) {
				break
			}
			continue
		}
		if isAcceptable == nil || isAcceptable(v) {
			return v, nil
		}
	}

	if len(failed) > 0 {
		return zero, &AggregateError{Errors: failed}
	}
	return zero, nil
}
