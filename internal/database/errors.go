package database

import "errors"

var (
	// ErrDatabaseNotFound is returned by Open when the database must already exist but does not.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrChecksumMismatch is returned when a stored snapshot does not match its checksum.
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

	// ErrReportNotFound is returned when a saved report does not exist.
	ErrReportNotFound = errors.New("report not found")
)
