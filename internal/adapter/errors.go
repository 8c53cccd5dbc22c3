// Package adapter holds the error taxonomy shared by the vendor API
// wrappers. Adapters never let a raw transport error escape: everything
// crossing into the pipeline is tagged retryable or fatal, and the pipeline
// alone decides whether and how often to retry.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies an adapter failure.
type ErrorKind int

const (
	// Retryable covers timeouts, rate limits, and transient network or
	// server errors. The pipeline may re-attempt up to its configured cap.
	Retryable ErrorKind = iota

	// Fatal covers malformed input, authentication failures, and other
	// errors a retry cannot fix.
	Fatal
)

// Error is a tagged adapter failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryablef builds a retryable adapter error.
func Retryablef(format string, args ...interface{}) error {
	return &Error{Kind: Retryable, Err: fmt.Errorf(format, args...)}
}

// Fatalf builds a fatal adapter error.
func Fatalf(format string, args ...interface{}) error {
	return &Error{Kind: Fatal, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind, preserving the chain for errors.Is/As.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// IsRetryable reports whether err should be re-attempted. Untagged network
// and deadline errors count as retryable; anything tagged Fatal does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// RetryableStatus reports whether an HTTP status code from a vendor API
// warrants a retry: 408, 429, and all 5xx.
func RetryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
