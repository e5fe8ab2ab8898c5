package config

import "errors"

// Configuration validation errors returned by Config.Validate and Settings.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when the analyze command gets no capture file.
	ErrNoTarget = errors.New("no target specified: provide at least one capture file")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCacheSize is returned when the request cache size is not positive.
	ErrInvalidCacheSize = errors.New("invalid request cache size: must be positive")

	// ErrInvalidPruneInterval is returned when the retention interval is negative.
	ErrInvalidPruneInterval = errors.New("invalid prune interval: must be non-negative")

	// ErrMissingListenAddress is returned when the server has no address to bind.
	ErrMissingListenAddress = errors.New("missing listen address")

	// ErrMissingSubject is returned when NATS is enabled without subjects.
	ErrMissingSubject = errors.New("nats is enabled but an event or alert subject is empty")

	// ErrInvalidRiskThreshold is returned when riskThreshold is outside 0-100.
	ErrInvalidRiskThreshold = errors.New("invalid risk threshold: must be between 0 and 100")

	// ErrInvalidRetention is returned when dataRetentionDays is negative.
	ErrInvalidRetention = errors.New("invalid data retention: must be non-negative days")
)
