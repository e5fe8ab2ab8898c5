package ledger

import (
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// MaxStoredExfiltrationAttempts caps the attempt list kept per origin.
// TotalAttempts keeps counting past it.
const MaxStoredExfiltrationAttempts = 100

// ExfiltrationAttempt is one request flagged as carrying sensitive data.
type ExfiltrationAttempt struct {
	Origin    string         `json:"origin"`
	URL       string         `json:"url"`
	Method    string         `json:"method,omitempty"`
	TabID     int            `json:"tabId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	DataTypes []string       `json:"dataTypes"`
	Severity  model.Severity `json:"severity"`
	Size      int            `json:"size"`
}

// ExfiltrationProfile aggregates the exfiltration attempts of one origin.
// Severity is the maximum over every recorded attempt.
type ExfiltrationProfile struct {
	Origin        string                `json:"origin"`
	Attempts      []ExfiltrationAttempt `json:"attempts"`
	TotalAttempts int                   `json:"totalAttempts"`
	DataTypes     *model.OrderedSet     `json:"dataTypes"`
	Severity      model.Severity        `json:"severity"`
	FirstSeen     time.Time             `json:"firstSeen"`
	LastSeen      time.Time             `json:"lastSeen"`
}

func (p *ExfiltrationProfile) clone() *ExfiltrationProfile {
	c := *p
	c.Attempts = slices.Clone(p.Attempts)
	c.DataTypes = p.DataTypes.Clone()
	return &c
}

// ExfiltrationLedger aggregates exfiltration attempts per origin.
type ExfiltrationLedger struct {
	store OriginProfileStore[*ExfiltrationProfile]
}

// NewExfiltrationLedger returns a ledger backed by store, or by a MemoryStore when store is nil.
func NewExfiltrationLedger(store OriginProfileStore[*ExfiltrationProfile]) *ExfiltrationLedger {
	if store == nil {
		store = NewMemoryStore[*ExfiltrationProfile]()
	}
	return &ExfiltrationLedger{store: store}
}

// Record adds attempt to its origin's profile. Data types are unioned and the
// stored severity is raised to the attempt's severity, never lowered.
func (l *ExfiltrationLedger) Record(attempt ExfiltrationAttempt) *ExfiltrationProfile {
	profile, ok := l.store.Get(attempt.Origin)
	if !ok {
		profile = &ExfiltrationProfile{
			Origin:    attempt.Origin,
			DataTypes: model.NewOrderedSet(),
			Severity:  model.SeverityLow,
			FirstSeen: attempt.Timestamp,
			LastSeen:  attempt.Timestamp,
		}
		l.store.Put(attempt.Origin, profile)
	}

	profile.Attempts = append(profile.Attempts, attempt)
	if len(profile.Attempts) > MaxStoredExfiltrationAttempts {
		profile.Attempts = slices.Clone(profile.Attempts[len(profile.Attempts)-MaxStoredExfiltrationAttempts:])
	}
	profile.TotalAttempts++
	if attempt.Timestamp.After(profile.LastSeen) {
		profile.LastSeen = attempt.Timestamp
	}
	if attempt.Timestamp.Before(profile.FirstSeen) {
		profile.FirstSeen = attempt.Timestamp
	}
	for _, dataType := range attempt.DataTypes {
		profile.DataTypes.Add(dataType)
	}
	profile.Severity = model.MaxSeverity(profile.Severity, attempt.Severity)
	return profile
}

// Get returns the profile of origin.
func (l *ExfiltrationLedger) Get(origin string) (*ExfiltrationProfile, bool) {
	return l.store.Get(origin)
}

// Len returns the number of origins with exfiltration attempts.
func (l *ExfiltrationLedger) Len() int {
	return l.store.Len()
}

// TotalAttempts sums the attempts of every origin.
func (l *ExfiltrationLedger) TotalAttempts() int {
	total := 0
	l.store.Range(func(_ string, p *ExfiltrationProfile) bool {
		total += p.TotalAttempts
		return true
	})
	return total
}

// Profiles returns every profile in first-seen order.
func (l *ExfiltrationLedger) Profiles() []*ExfiltrationProfile {
	profiles := make([]*ExfiltrationProfile, 0, l.store.Len())
	l.store.Range(func(_ string, p *ExfiltrationProfile) bool {
		profiles = append(profiles, p)
		return true
	})
	return profiles
}

// Export returns a deep copy of the ledger as origin/profile pairs.
func (l *ExfiltrationLedger) Export() []model.Pair[string, *ExfiltrationProfile] {
	pairs := make([]model.Pair[string, *ExfiltrationProfile], 0, l.store.Len())
	l.store.Range(func(origin string, p *ExfiltrationProfile) bool {
		pairs = append(pairs, model.Pair[string, *ExfiltrationProfile]{Key: origin, Value: p.clone()})
		return true
	})
	return pairs
}

// Import replaces the ledger content with pairs.
func (l *ExfiltrationLedger) Import(pairs []model.Pair[string, *ExfiltrationProfile]) {
	l.store.Clear()
	for _, pair := range pairs {
		if pair.Value == nil {
			continue
		}
		p := pair.Value.clone()
		if p.Origin == "" {
			p.Origin = pair.Key
		}
		l.store.Put(pair.Key, p)
	}
}

// Clear removes every profile.
func (l *ExfiltrationLedger) Clear() {
	l.store.Clear()
}
