package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotConfigured means the resolved provider has no usable credential.
	ErrNotConfigured = errors.New("llm provider not configured")

	// ErrSafetyBlocked means the backend refused the prompt on safety
	// grounds. Never retried; a blocked prompt cannot succeed on retry.
	ErrSafetyBlocked = errors.New("llm reply blocked by provider safety filter")

	// ErrEmptyReply covers the backend quirk of returning a successful
	// envelope with no content. Retried like a transport error.
	ErrEmptyReply = errors.New("llm reply missing content")

	// ErrCancelled is surfaced when the caller's context ends mid-call.
	ErrCancelled = errors.New("llm call cancelled")

	// ErrInvalidStructure means the repair pipeline exhausted every stage
	// without producing a schema-valid value.
	ErrInvalidStructure = errors.New("llm reply failed structured validation")
)

// APIError is a non-2xx response from a backend, parsed for a human message.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Message)
}

// permanentError pins an error as non-retryable regardless of its cause.
// Used once part of a reply has already been streamed to the caller, since
// replaying the request would re-emit tokens the caller already saw.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func noRetry(err error) error { return &permanentError{err: err} }

// retryable reports whether an error is worth another attempt: transient
// network failures and the empty-reply quirk. Cancellation and API errors
// are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyReply) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// cancelErr maps a context error onto the cancellation sentinel, keeping the
// original cause in the chain.
func cancelErr(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
}
