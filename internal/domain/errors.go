package domain

import "errors"

// Sentinel errors used throughout the application.
// Task bodies translate these to result kinds via result.FromError;
// HTTP handlers translate them to status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrTenantMismatch    = errors.New("operation not permitted for tenant")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrSenderFailure     = errors.New("channel sender failure")
	ErrInvalidType       = errors.New("invalid notification type")
	ErrInvalidPriority   = errors.New("invalid priority: must be low, medium, high, or urgent")
	ErrInvalidChannel    = errors.New("invalid channel: must be email, push, sms, in_app, or webhook")
	ErrInvalidRecipient  = errors.New("recipient must not be empty")
	ErrInvalidTitle      = errors.New("title must be between 1 and 200 characters")
	ErrInvalidMessage    = errors.New("message must be between 1 and 1000 characters")
	ErrNoTargets         = errors.New("batch resolves to zero targets")
	ErrQueueFull         = errors.New("queue is at capacity, try again later")
	ErrUnknownQueue      = errors.New("unknown queue")
)
