package classroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Attempt is one strategy in a cascade
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// AttemptFailure records why a named attempt failed
type AttemptFailure struct {
	Name string
	Err  error
}

// CascadeError lists every failure of an exhausted cascade in order
type CascadeError struct {
	Failures []AttemptFailure
}

func (e *CascadeError) Error() string {
	if len(e.Failures) == 0 {
		return "no attempts were made"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return "all attempts failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual failures to errors.Is and errors.As
func (e *CascadeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Failure returns the error recorded for the named attempt
func (e *CascadeError) Failure(name string) (error, bool) {
	for _, f := range e.Failures {
		if f.Name == name {
			return f.Err, true
		}
	}
	return nil, false
}

// Cascade runs attempts in order and returns the first success. When every
// attempt fails the result is a *CascadeError. A done context stops the cascade
// before the next attempt and its error is returned as is.
func Cascade[T any](ctx context.Context, attempts ...Attempt[T]) (T, error) {
	var zero T
	failures := &CascadeError{}

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := a.Run(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
		}
		failures.Failures = append(failures.Failures, AttemptFailure{Name: a.Name, Err: err})
	}

	return zero, failures
}
