// Package corerr defines the error taxonomy shared across the connection
// and streaming plane. Every component wraps failures in an *Error carrying
// a Kind so callers (the permission resolver, the circuit breaker, the
// stream multiplexer) can decide what counts as a breaker failure, what
// gets surfaced to a caller unchanged, and what becomes a terminal stream
// frame, without string-matching error text.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for routing purposes; it is not a Go type.
type Kind string

const (
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation_error"
	KindTransport        Kind = "transport_error"
	KindBreakerOpen      Kind = "breaker_open"
	KindEngine           Kind = "engine_error"
	KindStream           Kind = "stream_error"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// Error is the uniform error shape produced at component boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error carrying cause, classified as kind.
func Wrap(kind Kind, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: cause.Error(), Cause: cause}
}

// KindOf extracts the Kind of err, walking its Unwrap chain. Returns
// KindInternal for anything not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err's Kind equals k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// CountsAsBreakerFailure reports whether err should be counted as a
// Circuit Breaker failure. Only transport-level failures count; an engine
// returning a semantic error (e.g. "container is not running") does not.
func CountsAsBreakerFailure(err error) bool {
	return Is(err, KindTransport)
}

func Forbidden(op, message string) *Error   { return New(KindForbidden, op, message) }
func NotFound(op, message string) *Error    { return New(KindNotFound, op, message) }
func Conflict(op, message string) *Error    { return New(KindConflict, op, message) }
func Validation(op, message string) *Error  { return New(KindValidation, op, message) }
func Cancelled(op, message string) *Error   { return New(KindCancelled, op, message) }
func Internal(op string, cause error) *Error {
	return Wrap(KindInternal, op, cause)
}
func Transport(op string, cause error) *Error {
	return Wrap(KindTransport, op, cause)
}
func Engine(op string, cause error) *Error {
	return Wrap(KindEngine, op, cause)
}
func Stream(op string, cause error) *Error {
	return Wrap(KindStream, op, cause)
}
func BreakerOpen(op, hostID string) *Error {
	return New(KindBreakerOpen, op, fmt.Sprintf("circuit breaker open for host %s", hostID))
}
