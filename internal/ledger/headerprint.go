package ledger

import (
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
	"github.com/nao1215/surveilscope/internal/risk"
)

// MaxStoredHeaderAttempts caps the attempt list kept per origin.
const MaxStoredHeaderAttempts = 100

// HeaderAttempt is one request whose headers triggered fingerprinting heuristics.
type HeaderAttempt struct {
	URL       string    `json:"url"`
	TabID     int       `json:"tabId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Methods   []string  `json:"methods"`
}

// HeaderFingerprintProfile aggregates request header fingerprinting per origin.
type HeaderFingerprintProfile struct {
	Origin       string            `json:"origin"`
	Attempts     []HeaderAttempt   `json:"attempts"`
	AttemptCount int               `json:"attemptCount"`
	Methods      *model.OrderedSet `json:"methods"`
	RiskScore    int               `json:"riskScore"`
}

func (p *HeaderFingerprintProfile) clone() *HeaderFingerprintProfile {
	c := *p
	c.Attempts = slices.Clone(p.Attempts)
	c.Methods = p.Methods.Clone()
	return &c
}

// HeaderFingerprintLedger aggregates request header fingerprinting attempts.
type HeaderFingerprintLedger struct {
	store OriginProfileStore[*HeaderFingerprintProfile]
}

// NewHeaderFingerprintLedger returns a ledger backed by store, or by a MemoryStore when store is nil.
func NewHeaderFingerprintLedger(store OriginProfileStore[*HeaderFingerprintProfile]) *HeaderFingerprintLedger {
	if store == nil {
		store = NewMemoryStore[*HeaderFingerprintProfile]()
	}
	return &HeaderFingerprintLedger{store: store}
}

// Record adds attempt to origin's profile and rescores it.
func (l *HeaderFingerprintLedger) Record(origin string, attempt HeaderAttempt) *HeaderFingerprintProfile {
	profile, ok := l.store.Get(origin)
	if !ok {
		profile = &HeaderFingerprintProfile{Origin: origin, Methods: model.NewOrderedSet()}
		l.store.Put(origin, profile)
	}

	profile.Attempts = append(profile.Attempts, attempt)
	if len(profile.Attempts) > MaxStoredHeaderAttempts {
		profile.Attempts = slices.Clone(profile.Attempts[len(profile.Attempts)-MaxStoredHeaderAttempts:])
	}
	profile.AttemptCount++
	for _, method := range attempt.Methods {
		profile.Methods.Add(method)
	}
	profile.RiskScore = risk.HeaderFingerprintScore(profile.Methods.Len())
	return profile
}

// Get returns the profile of origin.
func (l *HeaderFingerprintLedger) Get(origin string) (*HeaderFingerprintProfile, bool) {
	return l.store.Get(origin)
}

// Len returns the number of origins with header fingerprinting.
func (l *HeaderFingerprintLedger) Len() int {
	return l.store.Len()
}

// Origins returns the origins with header fingerprinting, in first-seen order.
func (l *HeaderFingerprintLedger) Origins() []string {
	return Keys(l.store)
}

// Export returns a deep copy of the ledger as origin/profile pairs.
func (l *HeaderFingerprintLedger) Export() []model.Pair[string, *HeaderFingerprintProfile] {
	pairs := make([]model.Pair[string, *HeaderFingerprintProfile], 0, l.store.Len())
	l.store.Range(func(origin string, p *HeaderFingerprintProfile) bool {
		pairs = append(pairs, model.Pair[string, *HeaderFingerprintProfile]{Key: origin, Value: p.clone()})
		return true
	})
	return pairs
}

// Import replaces the ledger content with pairs.
func (l *HeaderFingerprintLedger) Import(pairs []model.Pair[string, *HeaderFingerprintProfile]) {
	l.store.Clear()
	for _, pair := range pairs {
		if pair.Value == nil {
			continue
		}
		p := pair.Value.clone()
		if p.Origin == "" {
			p.Origin = pair.Key
		}
		p.RiskScore = risk.HeaderFingerprintScore(p.Methods.Len())
		l.store.Put(pair.Key, p)
	}
}

// Clear removes every profile.
func (l *HeaderFingerprintLedger) Clear() {
	l.store.Clear()
}
