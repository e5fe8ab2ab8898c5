package model

import (
	"fmt"
	"strings"
)

// Severity represents how strongly an observation indicates surveillance.
// Severities are ordered, so the larger value always wins when two are combined.
type Severity int

const (
	// SeverityLow indicates weak signals such as a single data-collection endpoint.
	// This is also the starting severity of every new exfiltration profile.
	SeverityLow Severity = iota

	// SeverityMedium indicates moderate signals.
	// Examples: sensitive parameter names in a query string, navigator.language reads.
	SeverityMedium

	// SeverityHigh indicates strong signals.
	// Examples: fingerprint keywords in a request body, canvas readback, large payloads.
	SeverityHigh

	// SeverityCritical is reserved for signals that on their own identify the user.
	// No built-in heuristic produces it, but imported data and API-access events may carry it.
	SeverityCritical
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a severity name (case-insensitive) to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", s)
	}
}

// MarshalText encodes the severity as its name so JSON and YAML documents stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityCritical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}
