package task

import (
	"errors"
	"fmt"

	"github.com/mariachi-loyalty/dispatch/internal/domain"
)

// ErrorKind classifies a task failure so callers can decide on retry.
type ErrorKind string

const (
	// KindNone marks a successful result.
	KindNone ErrorKind = ""
	// KindNotFound: the referenced entity is missing. Terminal, never retried.
	KindNotFound ErrorKind = "not_found"
	// KindSenderFailure: a channel transport error. Retriable at the caller's
	// discretion.
	KindSenderFailure ErrorKind = "sender_failure"
	// KindTimeout: the task exceeded its hard time limit.
	KindTimeout ErrorKind = "timeout"
	// KindValidation: malformed input. Terminal.
	KindValidation ErrorKind = "validation"
	// KindInternal: any other fault caught at the task boundary.
	KindInternal ErrorKind = "internal"
)

// Result is the uniform structured outcome of every task body. Nothing
// escapes a handler as an unhandled fault: the worker recovers panics and
// converts them into a Result, so broker-level redelivery is never the
// primary failure-recovery mechanism.
type Result struct {
	Status  string    `json:"status"` // "success" | "error"
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message"`
	// SoftTimeout is set when the task finished after its soft limit but
	// before the hard limit: the work succeeded but took too long.
	SoftTimeout bool `json:"soft_timeout,omitempty"`
	// Fields carries domain-specific outcome data (counts, ids).
	Fields map[string]any `json:"fields,omitempty"`
}

// OK reports whether the task succeeded.
func (r Result) OK() bool { return r.Status == "success" }

// With attaches a domain field and returns the result for chaining.
func (r Result) With(key string, val any) Result {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = val
	return r
}

// Success builds a successful result.
func Success(message string) Result {
	return Result{Status: "success", Message: message}
}

// Failure builds an error result of the given kind.
func Failure(kind ErrorKind, format string, args ...any) Result {
	return Result{Status: "error", Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromError converts an error into a Result, mapping domain sentinels onto
// error kinds. A nil error becomes a bare success.
func FromError(err error) Result {
	switch {
	case err == nil:
		return Success("ok")
	case errors.Is(err, domain.ErrNotFound):
		return Failure(KindNotFound, "%s", err)
	case errors.Is(err, domain.ErrSenderFailure):
		return Failure(KindSenderFailure, "%s", err)
	case errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrInvalidRecipient),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrNoTargets):
		return Failure(KindValidation, "%s", err)
	default:
		return Failure(KindInternal, "%s", err)
	}
}
