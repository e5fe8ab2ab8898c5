package coordinator

import "errors"

var (
	// ErrUnsupportedEvent is returned by Handle for an event type it does not know.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrUnsupportedVersion is returned by ImportAll for an export document of another major version.
	ErrUnsupportedVersion = errors.New("unsupported export version")

	// ErrCorruptSnapshot is returned by LoadFromStore when a stored ledger cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)
