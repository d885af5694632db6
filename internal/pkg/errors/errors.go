package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller is authenticated but does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState rejects an operation the current lifecycle status does not allow.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict covers state-machine violations such as publishing twice.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyProcessed marks idempotent replays (webhooks, credit grants).
	ErrAlreadyProcessed = errors.New("already processed")
)
