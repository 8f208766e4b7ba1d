// Package mkcerr defines the MKC error taxonomy (spec §7): a closed set of
// kinds, each with a fixed retryability, wrapped around the underlying
// cause with operation context the way codenerd's store layer wraps
// driver errors (see internal/store/local_core.go: "failed to ...: %w").
package mkcerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the taxonomy in spec.md §7.
type Kind string

const (
	InvalidLayer              Kind = "InvalidLayer"
	MissingIdentifier         Kind = "MissingIdentifier"
	CrossTenantAccess         Kind = "CrossTenantAccess"
	ContentTooLong            Kind = "ContentTooLong"
	QueryTooLong              Kind = "QueryTooLong"
	MemoryNotFound            Kind = "MemoryNotFound"
	ItemNotFound              Kind = "ItemNotFound"
	InvalidStatusTransition   Kind = "InvalidStatusTransition"
	ConstraintSyntaxError     Kind = "ConstraintSyntaxError"
	EmbeddingFailed           Kind = "EmbeddingFailed"
	ProviderError             Kind = "ProviderError"
	GitError                  Kind = "GitError"
	Timeout                   Kind = "Timeout"
	RateLimited               Kind = "RateLimited"
	ConfigurationError        Kind = "ConfigurationError"
	VectorDimensionMismatch   Kind = "VectorDimensionMismatch"
)

// retryable records, per kind, whether §5's retry policy applies.
var retryable = map[Kind]bool{
	InvalidLayer:            false,
	MissingIdentifier:       false,
	CrossTenantAccess:       false,
	ContentTooLong:          false,
	QueryTooLong:            false,
	MemoryNotFound:          false,
	ItemNotFound:            false,
	InvalidStatusTransition: false,
	ConstraintSyntaxError:   false,
	EmbeddingFailed:         true,
	ProviderError:           true,
	GitError:                true,
	Timeout:                 true,
	RateLimited:             true,
	ConfigurationError:      false,
	VectorDimensionMismatch: false,
}

// Error is the concrete error type returned by every MKC operation.
type Error struct {
	Kind        Kind
	Op          string // operation name, e.g. "memory.Add"
	Identifiers string // redacted identifier summary, never content
	Message     string
	RetryHint   string // for RateLimited, an optional backend-provided hint
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Message, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether this error's kind is eligible for the §5
// exponential-backoff retry loop.
func (e *Error) Retryable() bool {
	return retryable[e.Kind]
}

// New constructs a non-wrapping Error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches operation context to an underlying backend error without
// leaking content — only the operation name and an identifier summary are
// included, per spec §7 "Propagation".
func Wrap(kind Kind, op, identifiers string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Identifiers: identifiers, Message: "backend error", cause: cause}
}

// Is reports whether err carries the given Kind, checking the wrapped
// error chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether err (anywhere in its chain) is retryable under
// §5's policy. Non-*Error errors are treated as non-retryable.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
