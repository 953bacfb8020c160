package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by adapters when the remote resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRetriesExhausted is returned when every attempt of a call failed transiently.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// RateLimitedError reports that the remote refused a call until Reset.
type RateLimitedError struct {
	Reset time.Time
	Err   error
}

func (e *RateLimitedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rate limited until %s", e.Reset.Format(time.RFC3339))
	}
	return fmt.Sprintf("rate limited until %s: %v", e.Reset.Format(time.RFC3339), e.Err)
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}

type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal marks err as not worth retrying.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// Outcome is the failure policy class of a single call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomeRateLimited
	OutcomeNotFound
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRateLimited:
		return "rate-limited"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps an error returned by an adapter to its failure policy.
// Anything not explicitly classified is treated as transient.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}

	var rl *RateLimitedError
	var term *terminalError
	switch {
	case errors.As(err, &rl):
		return OutcomeRateLimited
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.As(err, &term):
		return OutcomeTerminal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTerminal
	default:
		return OutcomeRetryable
	}
}
