package pipeline

import "fmt"

// ValidationError marks a malformed request. It maps to a 400 and is never
// retried; everything else that escapes the pipeline is a provider, parse
// or storage failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func validationErr(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
