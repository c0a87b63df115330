package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any work is done.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown source or conversation id.
	ErrNotFound = errors.New("not found")

	// ErrProvider marks a failed or malformed external provider call.
	ErrProvider = errors.New("provider error")
)

// NewValidationError wraps ErrValidation with a message.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ProviderError describes a failed embedding, generation or comment-source call.
type ProviderError struct {
	Provider string
	Op       string
	Input    string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.Input != "" {
		msg += fmt.Sprintf(" (input %q)", truncateInput(e.Input))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProvider) match any ProviderError.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// NewProviderError builds a ProviderError.
func NewProviderError(provider, op, input string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Input: input, Err: err}
}

// PartialFailure reports a batch operation where some units failed.
type PartialFailure struct {
	Op        string
	Succeeded int
	Failed    int
	Err       error
}

func (e *PartialFailure) Error() string {
	msg := fmt.Sprintf("%s partially failed: %d succeeded, %d failed", e.Op, e.Succeeded, e.Failed)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PartialFailure) Unwrap() error { return e.Err }

func truncateInput(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
