package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/surveilscope/internal/model"
)

// Analysis is everything a writer renders for one observation source.
type Analysis struct {
	// Source names where the events came from, e.g. a capture file or "live".
	Source string `json:"source"`

	// Report is the aggregate surveillance report.
	Report *model.SurveillanceReport `json:"report"`

	// Alerts are the security alerts raised while processing the source.
	Alerts []model.Alert `json:"alerts"`

	// EventsProcessed and EventsSkipped count the replayed events.
	EventsProcessed int `json:"eventsProcessed"`
	EventsSkipped   int `json:"eventsSkipped"`

	// Error describes why processing the source stopped early.
	Error string `json:"error,omitempty"`
}

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the analysis to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(analysis *Analysis) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the analysis to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(analysis *Analysis) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(analysis)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// MethodLabel turns a tag such as "third-party-tracker" into "Third Party Tracker".
func MethodLabel(tag string) string {
	return titleCaser.String(strings.ReplaceAll(tag, "-", " "))
}

// privacyGrade buckets a privacy score for display.
func privacyGrade(score int) string {
	switch {
	case score >= 90:
		return "Good"
	case score >= 70:
		return "Fair"
	case score >= 40:
		return "Poor"
	default:
		return "Critical"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
