package domain

import "errors"

// Domain errors
var (
	// Zone errors
	ErrZoneNotFound    = errors.New("zone not found")
	ErrVersionConflict = errors.New("zone was modified concurrently, re-read and retry")
	ErrInvalidGeometry = errors.New("boundary is malformed or degenerate")

	// Workflow errors
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotPublishable    = errors.New("zone geometry does not pass validation for publishing")

	// Permission errors
	ErrForbidden = errors.New("caller lacks the required capability")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Store errors
	ErrUnavailable = errors.New("storage unavailable, retry with backoff")
)
