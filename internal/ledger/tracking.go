package ledger

import (
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
	"github.com/nao1215/surveilscope/internal/risk"
)

// Tracking method tags.
const (
	MethodThirdPartyTracker = "third-party-tracker"
	MethodURLParameters     = "url-parameters"
	MethodCookies           = "cookies"
	MethodResponseHeaders   = "response-headers"
)

// MaxStoredActivities caps the activity list kept per origin.
// ActivityCount keeps counting past it.
const MaxStoredActivities = 200

// ActivityType is the observation phase that produced an activity.
type ActivityType string

const (
	ActivityRequest  ActivityType = "request"
	ActivityResponse ActivityType = "response"
	ActivityCookie   ActivityType = "cookie"
)

// Activity is one tracking observation for an origin.
type Activity struct {
	Origin    string       `json:"origin"`
	URL       string       `json:"url"`
	Type      ActivityType `json:"type"`
	Method    string       `json:"method,omitempty"`
	TabID     int          `json:"tabId,omitempty"`
	FrameID   int          `json:"frameId,omitempty"`
	Initiator string       `json:"initiator,omitempty"`
	Timestamp time.Time    `json:"timestamp"`

	// ThirdParty is set when the origin is a known tracking domain.
	ThirdParty bool `json:"isTracker,omitempty"`
	// URLParameters is set when the URL carries tracking parameters.
	URLParameters bool `json:"hasTrackingParams,omitempty"`
	// Cookie is set when a tracking cookie was set.
	Cookie bool `json:"cookie,omitempty"`
	// ResponseHeaders is set when the response carried tracking headers.
	ResponseHeaders bool `json:"responseHeaders,omitempty"`

	// TrackingHeaders and CookieNames name what was matched.
	TrackingHeaders []string `json:"trackingHeaders,omitempty"`
	CookieNames     []string `json:"cookieNames,omitempty"`
}

// TrackingProfile aggregates the tracking activity of one origin.
type TrackingProfile struct {
	Origin    string    `json:"origin"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`

	// Activities holds the most recent MaxStoredActivities activities.
	Activities []Activity `json:"activities"`

	// ActivityCount is the number of activities ever recorded.
	ActivityCount int `json:"activityCount"`

	TrackingMethods *model.OrderedSet `json:"trackingMethods"`
	RiskScore       int               `json:"riskScore"`
}

func (p *TrackingProfile) clone() *TrackingProfile {
	c := *p
	c.Activities = slices.Clone(p.Activities)
	c.TrackingMethods = p.TrackingMethods.Clone()
	return &c
}

// TrackingLedger aggregates tracking activities per origin and keeps each
// profile's risk score current.
type TrackingLedger struct {
	store        OriginProfileStore[*TrackingProfile]
	knownTracker func(origin string) bool
}

// NewTrackingLedger returns a ledger backed by store, or by a MemoryStore when
// store is nil. knownTracker decides the known-tracker bonus of the risk score.
func NewTrackingLedger(store OriginProfileStore[*TrackingProfile], knownTracker func(string) bool) *TrackingLedger {
	if store == nil {
		store = NewMemoryStore[*TrackingProfile]()
	}
	if knownTracker == nil {
		knownTracker = func(string) bool { return false }
	}
	return &TrackingLedger{store: store, knownTracker: knownTracker}
}

// Record appends activity to its origin's profile, creating the profile on
// first sight, tags the tracking methods the activity shows and recomputes
// the risk score.
func (l *TrackingLedger) Record(activity Activity) *TrackingProfile {
	profile, ok := l.store.Get(activity.Origin)
	if !ok {
		profile = &TrackingProfile{
			Origin:          activity.Origin,
			FirstSeen:       activity.Timestamp,
			LastSeen:        activity.Timestamp,
			TrackingMethods: model.NewOrderedSet(),
		}
		l.store.Put(activity.Origin, profile)
	}

	profile.Activities = append(profile.Activities, activity)
	if len(profile.Activities) > MaxStoredActivities {
		profile.Activities = slices.Clone(profile.Activities[len(profile.Activities)-MaxStoredActivities:])
	}
	profile.ActivityCount++
	if activity.Timestamp.After(profile.LastSeen) {
		profile.LastSeen = activity.Timestamp
	}
	if activity.Timestamp.Before(profile.FirstSeen) {
		profile.FirstSeen = activity.Timestamp
	}

	if activity.ThirdParty {
		profile.TrackingMethods.Add(MethodThirdPartyTracker)
	}
	if activity.URLParameters {
		profile.TrackingMethods.Add(MethodURLParameters)
	}
	if activity.Cookie {
		profile.TrackingMethods.Add(MethodCookies)
	}
	if activity.ResponseHeaders {
		profile.TrackingMethods.Add(MethodResponseHeaders)
	}

	profile.RiskScore = l.Score(profile)
	return profile
}

// Score computes the risk score of profile without modifying it.
func (l *TrackingLedger) Score(profile *TrackingProfile) int {
	return risk.TrackingScore(
		profile.TrackingMethods.Len(),
		profile.ActivityCount,
		l.knownTracker(profile.Origin),
		profile.LastSeen.Sub(profile.FirstSeen),
	)
}

// Rescore recomputes every profile's risk score and returns how many changed.
func (l *TrackingLedger) Rescore() int {
	changed := 0
	l.store.Range(func(_ string, p *TrackingProfile) bool {
		if score := l.Score(p); score != p.RiskScore {
			p.RiskScore = score
			changed++
		}
		return true
	})
	return changed
}

// Get returns the profile of origin.
func (l *TrackingLedger) Get(origin string) (*TrackingProfile, bool) {
	return l.store.Get(origin)
}

// Len returns the number of tracked origins.
func (l *TrackingLedger) Len() int {
	return l.store.Len()
}

// Profiles returns every profile in first-seen order.
func (l *TrackingLedger) Profiles() []*TrackingProfile {
	profiles := make([]*TrackingProfile, 0, l.store.Len())
	l.store.Range(func(_ string, p *TrackingProfile) bool {
		profiles = append(profiles, p)
		return true
	})
	return profiles
}

// Export returns a deep copy of the ledger as origin/profile pairs.
func (l *TrackingLedger) Export() []model.Pair[string, *TrackingProfile] {
	pairs := make([]model.Pair[string, *TrackingProfile], 0, l.store.Len())
	l.store.Range(func(origin string, p *TrackingProfile) bool {
		pairs = append(pairs, model.Pair[string, *TrackingProfile]{Key: origin, Value: p.clone()})
		return true
	})
	return pairs
}

// Import replaces the ledger content with pairs. Entries with a nil profile are skipped.
func (l *TrackingLedger) Import(pairs []model.Pair[string, *TrackingProfile]) {
	l.store.Clear()
	for _, pair := range pairs {
		if pair.Value == nil {
			continue
		}
		p := pair.Value.clone()
		if p.Origin == "" {
			p.Origin = pair.Key
		}
		if p.ActivityCount < len(p.Activities) {
			p.ActivityCount = len(p.Activities)
		}
		l.store.Put(pair.Key, p)
	}
}

// Clear removes every profile.
func (l *TrackingLedger) Clear() {
	l.store.Clear()
}
