package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures. Validation errors are
// surfaced synchronously to the caller; persistence failures never are
// (they are logged inside the flush path instead).
// -----------------------------------------------------------------------------

// Profile errors
var (
	ErrNotInitialized     = errors.New("profile not initialized")
	ErrAlreadyInitialized = errors.New("profile already initialized")
)

// Snapshot errors
var (
	ErrIncompatibleVersion = errors.New("incompatible snapshot version")
	ErrMalformedSnapshot   = errors.New("malformed snapshot")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
