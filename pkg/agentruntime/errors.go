package agentruntime

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownTool is returned for a Tool value outside the closed set.
	ErrUnknownTool = errors.New("unknown agent tool")

	// ErrMalformedResponse is returned when stdout does not contain
	// exactly one fenced JSON code block (spec §4.4).
	ErrMalformedResponse = errors.New("malformed agent response")

	// ErrTransient marks a transport-level failure eligible for local
	// retry with backoff (spec §4.4).
	ErrTransient = errors.New("transient agent runtime error")

	// ErrRateLimited marks a rate-limit response from the subprocess,
	// eligible for backoff retry (spec §4.4).
	ErrRateLimited = errors.New("agent rate limited")

	// ErrTimeout marks a subprocess killed after exceeding its deadline
	// (spec §4.4, §4.8's "Timeout ... counted as Transient once").
	ErrTimeout = errors.New("agent invocation timed out")
)

// MalformedResponseError carries the count of fenced JSON blocks found,
// zero or more-than-one (spec §4.4: "multiple blocks or none is an
// error").
type MalformedResponseError struct {
	BlockCount int
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: found %d fenced JSON blocks, expected exactly 1", ErrMalformedResponse, e.BlockCount)
}

func (e *MalformedResponseError) Unwrap() error { return ErrMalformedResponse }

// NewMalformedResponseError constructs a MalformedResponseError.
func NewMalformedResponseError(blockCount int) *MalformedResponseError {
	return &MalformedResponseError{BlockCount: blockCount}
}

// RateLimitedError carries the retry-after duration reported by the
// subprocess, when the tool communicates one.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// NewRateLimitedError constructs a RateLimitedError.
func NewRateLimitedError(retryAfter time.Duration) *RateLimitedError {
	return &RateLimitedError{RetryAfter: retryAfter}
}

// TransientError wraps an underlying transport failure.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%v: %v", ErrTransient, e.Err) }
func (e *TransientError) Unwrap() error { return ErrTransient }

// NewTransientError constructs a TransientError.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}
