package fingerprint

import (
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

const (
	// RecentWindow is how far back the summary looks for recent activity.
	RecentWindow = 10 * time.Minute

	// maxRecentActivity caps Summary.RecentActivity.
	maxRecentActivity = 20

	// maxMostActive caps Summary.MostActive.
	maxMostActive = 10
)

// OriginActivity counts the recent timeline entries of one origin.
type OriginActivity struct {
	Origin        string `json:"origin"`
	Count         int    `json:"count"`
	NewAttributes int    `json:"newAttributes"`
}

// Progression lists every attribute an origin has read.
type Progression struct {
	Origin          string   `json:"origin"`
	TotalAttributes int      `json:"totalAttributes"`
	Attributes      []string `json:"attributes"`
}

// Summary is the forensic overview of the tracker.
type Summary struct {
	TotalOrigins    int `json:"totalOrigins"`
	TotalAttributes int `json:"totalAttributes"`

	// RecentActivity is the newest entries within RecentWindow, newest first.
	RecentActivity []Entry `json:"recentActivity"`

	// TimelineEntries is every entry within RecentWindow, newest first.
	TimelineEntries []Entry `json:"timelineEntries"`

	// MostActive ranks origins by recent entry count. Ties keep the order in
	// which the origins appear in TimelineEntries.
	MostActive []OriginActivity `json:"mostActiveFingerprinters"`

	AttributeProgression []model.Pair[string, Progression] `json:"attributeProgression"`
}

// Summary builds the forensic overview in one pass over the timelines.
func (t *Tracker) Summary() Summary {
	summary := Summary{
		TotalOrigins:         t.attributes.Len(),
		RecentActivity:       []Entry{},
		TimelineEntries:      []Entry{},
		MostActive:           []OriginActivity{},
		AttributeProgression: []model.Pair[string, Progression]{},
	}

	t.attributes.Range(func(origin string, attrs *model.OrderedSet) bool {
		summary.TotalAttributes += attrs.Len()
		summary.AttributeProgression = append(summary.AttributeProgression, model.Pair[string, Progression]{
			Key: origin,
			Value: Progression{
				Origin:          origin,
				TotalAttributes: attrs.Len(),
				Attributes:      attrs.Items(),
			},
		})
		return true
	})

	cutoff := t.clock().Add(-RecentWindow)
	for _, key := range t.keys {
		for _, entry := range t.timelines[key] {
			if entry.Timestamp.After(cutoff) {
				summary.TimelineEntries = append(summary.TimelineEntries, entry)
			}
		}
	}
	slices.SortStableFunc(summary.TimelineEntries, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	summary.RecentActivity = slices.Clone(summary.TimelineEntries[:min(len(summary.TimelineEntries), maxRecentActivity)])

	index := make(map[string]int)
	for _, entry := range summary.TimelineEntries {
		i, ok := index[entry.Origin]
		if !ok {
			i = len(summary.MostActive)
			index[entry.Origin] = i
			summary.MostActive = append(summary.MostActive, OriginActivity{Origin: entry.Origin})
		}
		summary.MostActive[i].Count++
		if entry.IsNewAttribute {
			summary.MostActive[i].NewAttributes++
		}
	}
	slices.SortStableFunc(summary.MostActive, func(a, b OriginActivity) int {
		return b.Count - a.Count
	})
	if len(summary.MostActive) > maxMostActive {
		summary.MostActive = summary.MostActive[:maxMostActive]
	}

	return summary
}
