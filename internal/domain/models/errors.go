package models

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobClosed is returned when recording into a terminal or full job.
	ErrJobClosed = errors.New("job no longer accepts results")
	// ErrInvalidTransition marks a rejected status change.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrRateLimited signals an upstream rate-limit response. It is retried
	// internally and only surfaces wrapped in a FetchError.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrModelUnavailable is returned when no risk model can be reached.
	ErrModelUnavailable = errors.New("risk model unavailable")
)

// ValidationError rejects malformed caller input before any work starts.
type ValidationError struct {
	Field  string
	Value  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError reports an upstream fetch that failed after all attempts.
type FetchError struct {
	Address  string
	Action   string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s failed after %d attempt(s): %v", e.Action, e.Address, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ScoringError reports a malformed feature vector or failed model call.
type ScoringError struct {
	Address string
	Err     error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score %s: %v", e.Address, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// TransitionError describes a rejected status change.
type TransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
