package fingerprint

import (
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// Detail types recorded with a timeline entry.
const (
	// DetailAPIAccess marks an entry produced by a page API hook.
	DetailAPIAccess = "api-access"

	// DetailFingerprintingMethod marks an entry produced by a request header heuristic.
	DetailFingerprintingMethod = "fingerprinting-method"
)

// Details describes where an attribute access came from.
type Details struct {
	// Type is DetailAPIAccess or DetailFingerprintingMethod.
	Type string `json:"type,omitempty"`

	// URL is the page or request URL.
	URL string `json:"url,omitempty"`

	// Category is the API family, e.g. "display" or "canvas".
	Category string `json:"category,omitempty"`

	// Severity is the severity hint attached to the access, if any.
	Severity *model.Severity `json:"severity,omitempty"`
}

// Entry is one attribute access on the timeline.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	TimeFormatted string    `json:"timeFormatted"`
	Origin        string    `json:"origin"`
	Attribute     string    `json:"attribute"`

	// IsNewAttribute is true only for the first access of Attribute by Origin.
	IsNewAttribute bool `json:"isNewAttribute"`

	Details Details `json:"details"`

	// TotalFingerprintsAfter is the size of the origin's attribute set after this access.
	TotalFingerprintsAfter int `json:"totalFingerprintsAfter"`

	// SessionElapsed is the time since the session started.
	SessionElapsed time.Duration `json:"sessionElapsed"`
}

// TimelineKey identifies the timeline of one origin on one calendar day.
type TimelineKey struct {
	Origin string `json:"origin"`

	// Day is the calendar date of the entries in "2006-01-02" form.
	Day string `json:"day"`
}

// dayOf returns the calendar day of t in its own location.
func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}

// formatClock renders the wall-clock time shown next to an entry.
func formatClock(t time.Time) string {
	return t.Format(time.TimeOnly)
}
