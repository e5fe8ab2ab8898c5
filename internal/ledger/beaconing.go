package ledger

import (
	"math"
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

const (
	// BeaconWindow is the number of recent requests kept per origin.
	BeaconWindow = 50

	// BeaconTolerance is the largest relative deviation between the last two
	// intervals that still counts as regular.
	BeaconTolerance = 0.2

	// MinBeaconInterval and MaxBeaconInterval bound the average interval of a beacon.
	MinBeaconInterval = time.Second
	MaxBeaconInterval = 5 * time.Minute
)

// BeaconSample is one request observed for beaconing analysis.
type BeaconSample struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Method    string    `json:"method,omitempty"`
}

// BeaconPattern describes the most recent detection.
type BeaconPattern struct {
	Interval   time.Duration `json:"interval"`
	Confidence float64       `json:"confidence"`
	DetectedAt time.Time     `json:"detectedAt"`
}

// BeaconingProfile is the request window of one origin.
// IsBeaconing never reverts once set.
type BeaconingProfile struct {
	Origin      string         `json:"origin"`
	Requests    []BeaconSample `json:"requests"`
	IsBeaconing bool           `json:"isBeaconing"`
	Pattern     *BeaconPattern `json:"pattern"`
}

func (p *BeaconingProfile) clone() *BeaconingProfile {
	c := *p
	c.Requests = slices.Clone(p.Requests)
	if p.Pattern != nil {
		pattern := *p.Pattern
		c.Pattern = &pattern
	}
	return &c
}

// Detection is returned when the latest request completes a regular pattern.
type Detection struct {
	Origin  string
	Pattern BeaconPattern
}

// BeaconingLedger detects periodic requests per origin.
type BeaconingLedger struct {
	store OriginProfileStore[*BeaconingProfile]
}

// NewBeaconingLedger returns a ledger backed by store, or by a MemoryStore when store is nil.
func NewBeaconingLedger(store OriginProfileStore[*BeaconingProfile]) *BeaconingLedger {
	if store == nil {
		store = NewMemoryStore[*BeaconingProfile]()
	}
	return &BeaconingLedger{store: store}
}

// Observe appends sample to origin's window and tests the last three
// timestamps for a regular interval. On detection the profile is marked as
// beaconing, its pattern is overwritten with detectedAt = now and the
// detection is returned.
func (l *BeaconingLedger) Observe(origin string, sample BeaconSample, now time.Time) (Detection, bool) {
	profile, ok := l.store.Get(origin)
	if !ok {
		profile = &BeaconingProfile{Origin: origin}
		l.store.Put(origin, profile)
	}

	profile.Requests = append(profile.Requests, sample)
	if len(profile.Requests) > BeaconWindow {
		profile.Requests = slices.Clone(profile.Requests[len(profile.Requests)-BeaconWindow:])
	}

	pattern, ok := regularInterval(profile.Requests, now)
	if !ok {
		return Detection{}, false
	}
	profile.IsBeaconing = true
	profile.Pattern = &pattern
	return Detection{Origin: origin, Pattern: pattern}, true
}

// regularInterval tests the last three samples of window.
func regularInterval(window []BeaconSample, now time.Time) (BeaconPattern, bool) {
	if len(window) < 3 {
		return BeaconPattern{}, false
	}
	recent := window[len(window)-3:]
	interval1 := milliseconds(recent[1].Timestamp.Sub(recent[0].Timestamp))
	interval2 := milliseconds(recent[2].Timestamp.Sub(recent[1].Timestamp))
	avg := (interval1 + interval2) / 2
	if avg <= 0 {
		return BeaconPattern{}, false
	}
	deviation := math.Abs(interval1-interval2) / avg

	if deviation > BeaconTolerance ||
		avg < milliseconds(MinBeaconInterval) ||
		avg > milliseconds(MaxBeaconInterval) {
		return BeaconPattern{}, false
	}
	return BeaconPattern{
		Interval:   time.Duration(avg * float64(time.Millisecond)),
		Confidence: 1 - deviation,
		DetectedAt: now,
	}, true
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Get returns the profile of origin.
func (l *BeaconingLedger) Get(origin string) (*BeaconingProfile, bool) {
	return l.store.Get(origin)
}

// Len returns the number of origins with observed requests.
func (l *BeaconingLedger) Len() int {
	return l.store.Len()
}

// Beaconing returns the profiles flagged as beaconing, in first-seen order.
func (l *BeaconingLedger) Beaconing() []*BeaconingProfile {
	var profiles []*BeaconingProfile
	l.store.Range(func(_ string, p *BeaconingProfile) bool {
		if p.IsBeaconing && p.Pattern != nil {
			profiles = append(profiles, p)
		}
		return true
	})
	return profiles
}

// Export returns a deep copy of the ledger as origin/profile pairs.
func (l *BeaconingLedger) Export() []model.Pair[string, *BeaconingProfile] {
	pairs := make([]model.Pair[string, *BeaconingProfile], 0, l.store.Len())
	l.store.Range(func(origin string, p *BeaconingProfile) bool {
		pairs = append(pairs, model.Pair[string, *BeaconingProfile]{Key: origin, Value: p.clone()})
		return true
	})
	return pairs
}

// Import replaces the ledger content with pairs. Windows longer than
// BeaconWindow keep only their newest samples.
func (l *BeaconingLedger) Import(pairs []model.Pair[string, *BeaconingProfile]) {
	l.store.Clear()
	for _, pair := range pairs {
		if pair.Value == nil {
			continue
		}
		p := pair.Value.clone()
		if p.Origin == "" {
			p.Origin = pair.Key
		}
		if len(p.Requests) > BeaconWindow {
			p.Requests = p.Requests[len(p.Requests)-BeaconWindow:]
		}
		l.store.Put(pair.Key, p)
	}
}

// Clear removes every profile.
func (l *BeaconingLedger) Clear() {
	l.store.Clear()
}
