// Package fallback provides the ordered-attempt combinator shared by the
// identification chain and the analysis stage: try each strategy in order,
// short-circuit on the first success, surface the last failure when all fail.
package fallback

import (
	"context"
	"fmt"
)

// ProviderError marks a failure originating from an external provider, as
// opposed to a validation or parse problem in our own code. Wrapping lets
// callers match with errors.As across the chain.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Strategy is one attempt in an ordered chain.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Attempt evaluates strategies in order and returns the first success along
// with the winning strategy's name. onFallback is invoked for every failed
// attempt that still has a successor, so callers can log and count
// fallbacks without duplicating that logic per stage.
func Attempt[T any](ctx context.Context, strategies []Strategy[T], onFallback func(name string, err error)) (T, string, error) {
	var zero T
	var lastErr error

	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		v, err := s.Run(ctx)
		if err == nil {
			return v, s.Name, nil
		}

		lastErr = err
		if i < len(strategies)-1 && onFallback != nil {
			onFallback(s.Name, err)
		}
	}

	if lastErr == nil {
		return zero, "", fmt.Errorf("fallback: no strategies configured")
	}
	return zero, "", lastErr
}
