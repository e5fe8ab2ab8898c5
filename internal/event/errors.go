package event

import "errors"

var (
	// ErrInvalidEvent is returned when an event document fails schema validation or decoding.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownKind is returned for an event kind outside the closed set.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrMissingOrigin is returned for an API-access event whose origin cannot be determined.
	ErrMissingOrigin = errors.New("api-access event has neither origin nor a parseable url")
)
