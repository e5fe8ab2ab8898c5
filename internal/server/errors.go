package server

import "errors"

var (
	// ErrInvalidLimit is returned for a non-numeric or negative limit query parameter.
	ErrInvalidLimit = errors.New("limit must be a non-negative integer")

	// ErrInvalidSince is returned for a since query parameter that is not RFC 3339.
	ErrInvalidSince = errors.New("since must be an RFC 3339 timestamp")

	// ErrEmptyBody is returned when a request that needs a body has none.
	ErrEmptyBody = errors.New("request body is empty")
)
