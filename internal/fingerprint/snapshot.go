package fingerprint

import (
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

// Snapshot is the serializable state of a Tracker.
// Map-shaped state is kept as ordered key/value pairs.
type Snapshot struct {
	FingerprintTimeline []model.Pair[TimelineKey, []Entry] `json:"fingerprintTimeline"`
	AttributeDatabase   []model.Pair[string, []string]     `json:"attributeDatabase"`
	SessionStartTime    time.Time                          `json:"sessionStartTime"`
	ExportTimestamp     time.Time                          `json:"exportTimestamp"`
}

// Export returns a deep copy of the tracker state.
func (t *Tracker) Export() Snapshot {
	snap := Snapshot{
		FingerprintTimeline: make([]model.Pair[TimelineKey, []Entry], 0, len(t.keys)),
		AttributeDatabase:   make([]model.Pair[string, []string], 0, t.attributes.Len()),
		SessionStartTime:    t.sessionStart,
		ExportTimestamp:     t.clock(),
	}
	for _, key := range t.keys {
		snap.FingerprintTimeline = append(snap.FingerprintTimeline, model.Pair[TimelineKey, []Entry]{
			Key:   key,
			Value: slices.Clone(t.timelines[key]),
		})
	}
	t.attributes.Range(func(origin string, attrs *model.OrderedSet) bool {
		snap.AttributeDatabase = append(snap.AttributeDatabase, model.Pair[string, []string]{
			Key:   origin,
			Value: attrs.Items(),
		})
		return true
	})
	return snap
}

// Import replaces the parts of the tracker state present in snap.
// A nil list or a zero session start leaves the corresponding state untouched.
func (t *Tracker) Import(snap Snapshot) {
	if snap.FingerprintTimeline != nil {
		t.timelines = make(map[TimelineKey][]Entry, len(snap.FingerprintTimeline))
		t.keys = make([]TimelineKey, 0, len(snap.FingerprintTimeline))
		for _, p := range snap.FingerprintTimeline {
			if _, exists := t.timelines[p.Key]; !exists {
				t.keys = append(t.keys, p.Key)
			}
			t.timelines[p.Key] = append(t.timelines[p.Key], p.Value...)
		}
	}
	if snap.AttributeDatabase != nil {
		t.attributes.Clear()
		for _, p := range snap.AttributeDatabase {
			attrs, ok := t.attributes.Get(p.Key)
			if !ok {
				attrs = model.NewOrderedSet()
				t.attributes.Put(p.Key, attrs)
			}
			for _, attr := range p.Value {
				attrs.Add(attr)
			}
		}
	}
	if !snap.SessionStartTime.IsZero() {
		t.sessionStart = snap.SessionStartTime
	}
}
