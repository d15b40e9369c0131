package service

import "errors"

// Error taxonomy shared by the services. Callers classify with errors.Is;
// the API layer maps these to response codes.
var (
	// ErrValidation marks malformed input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an absent referenced entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a concurrent mutation on the same key. Safe to
	// retry immediately.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks a storage failure or timeout. Retried with
	// backoff by the caller.
	ErrUnavailable = errors.New("unavailable")
	// ErrInvalidArgument marks bad pagination or filter parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)
