package classifier

import (
	"slices"
	"strings"
)

// defaultTrackers is the built-in known-tracker list.
var defaultTrackers = []string{
	"google-analytics.com", "googletagmanager.com", "doubleclick.net",
	"facebook.com", "connect.facebook.net", "fbcdn.net",
	"amazon-adsystem.com", "googlesyndication.com", "googleadservices.com",
	"scorecardresearch.com", "quantserve.com", "outbrain.com",
	"taboola.com", "adsystem.amazon.com", "ads.yahoo.com",
	"bing.com", "linkedin.com", "twitter.com", "pinterest.com",
	"hotjar.com", "fullstory.com", "logrocket.com", "mouseflow.com",
}

// DefaultTrackers returns a copy of the built-in known-tracker list.
func DefaultTrackers() []string {
	return slices.Clone(defaultTrackers)
}

// Classifier holds the known-tracker set: the built-in list plus any custom
// trackers merged in from settings. Custom trackers are only ever added.
//
// A Classifier is not safe for concurrent mutation; the coordinator that owns
// it serializes access.
type Classifier struct {
	trackers map[string]struct{}
	order    []string
}

// New returns a Classifier seeded with the built-in tracker list and custom.
func New(custom ...string) *Classifier {
	c := &Classifier{trackers: make(map[string]struct{}, len(defaultTrackers)+len(custom))}
	c.AddCustomTrackers(defaultTrackers...)
	c.AddCustomTrackers(custom...)
	return c
}

// AddCustomTrackers merges domains into the known-tracker set and returns how
// many were new. Blank entries are ignored; surrounding space is trimmed.
func (c *Classifier) AddCustomTrackers(domains ...string) int {
	added := 0
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := c.trackers[d]; ok {
			continue
		}
		c.trackers[d] = struct{}{}
		c.order = append(c.order, d)
		added++
	}
	return added
}

// IsTrackingDomain reports whether host contains, or ends with, any known
// tracker. The comparison is case-sensitive; hostnames from parsed URLs are
// already lower case.
func (c *Classifier) IsTrackingDomain(host string) bool {
	if host == "" {
		return false
	}
	for _, tracker := range c.order {
		if strings.Contains(host, tracker) || strings.HasSuffix(host, tracker) {
			return true
		}
	}
	return false
}

// IsKnownTracker reports whether host is exactly a member of the known-tracker set.
func (c *Classifier) IsKnownTracker(host string) bool {
	_, ok := c.trackers[host]
	return ok
}

// KnownTrackers returns the known-tracker set in insertion order.
func (c *Classifier) KnownTrackers() []string {
	return slices.Clone(c.order)
}
