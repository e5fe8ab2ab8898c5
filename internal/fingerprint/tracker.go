package fingerprint

import (
	"log/slog"
	"slices"
	"time"

	"github.com/nao1215/surveilscope/internal/ledger"
	"github.com/nao1215/surveilscope/internal/model"
)

// Observer receives each timeline entry as it is recorded.
// A returned error is logged and does not affect the tracker or other observers.
type Observer func(Entry) error

type observer struct {
	id int
	fn Observer
}

// Tracker records fingerprinting attribute accesses per origin.
// It is not safe for concurrent use.
type Tracker struct {
	attributes ledger.OriginProfileStore[*model.OrderedSet]
	timelines  map[TimelineKey][]Entry
	keys       []TimelineKey

	sessionStart time.Time

	observers   []observer
	nextID      int
	dispatching bool
	pending     []Entry

	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used for entry timestamps and the session start.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger sets the logger used to report observer failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithAttributeStore replaces the in-memory attribute store.
func WithAttributeStore(store ledger.OriginProfileStore[*model.OrderedSet]) Option {
	return func(t *Tracker) {
		if store != nil {
			t.attributes = store
		}
	}
}

// NewTracker returns an empty Tracker whose session starts now.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		attributes: ledger.NewMemoryStore[*model.OrderedSet](),
		timelines:  make(map[TimelineKey][]Entry),
		clock:      time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sessionStart = t.clock()
	return t
}

// Record registers an access of attribute by origin and returns the new entry.
// Novelty is decided before the attribute is added to the origin's set.
func (t *Tracker) Record(origin, attribute string, details Details) Entry {
	now := t.clock()

	attrs, ok := t.attributes.Get(origin)
	if !ok {
		attrs = model.NewOrderedSet()
		t.attributes.Put(origin, attrs)
	}
	isNew := attrs.Add(attribute)

	entry := Entry{
		Timestamp:              now,
		TimeFormatted:          formatClock(now),
		Origin:                 origin,
		Attribute:              attribute,
		IsNewAttribute:         isNew,
		Details:                details,
		TotalFingerprintsAfter: attrs.Len(),
		SessionElapsed:         now.Sub(t.sessionStart),
	}

	key := TimelineKey{Origin: origin, Day: dayOf(now)}
	if _, exists := t.timelines[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.timelines[key] = append(t.timelines[key], entry)

	t.pending = append(t.pending, entry)
	if !t.dispatching {
		t.dispatch()
	}
	return entry
}

// dispatch delivers queued entries in order. Entries recorded by observers
// while dispatching are appended to the queue and delivered afterwards.
func (t *Tracker) dispatch() {
	t.dispatching = true
	defer func() { t.dispatching = false }()

	for len(t.pending) > 0 {
		entry := t.pending[0]
		t.pending = t.pending[1:]

		observers := slices.Clone(t.observers)
		for _, o := range observers {
			t.notify(o, entry)
		}
	}
	t.pending = nil
}

func (t *Tracker) notify(o observer, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("timeline observer panicked",
				"observer", o.id,
				"origin", entry.Origin,
				"panic", r)
		}
	}()
	if err := o.fn(entry); err != nil {
		t.logger.Warn("timeline observer failed",
			"observer", o.id,
			"origin", entry.Origin,
			"error", err)
	}
}

// Subscribe registers fn for every future entry and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (t *Tracker) Subscribe(fn Observer) (cancel func()) {
	t.nextID++
	id := t.nextID
	t.observers = append(t.observers, observer{id: id, fn: fn})
	return func() {
		t.observers = slices.DeleteFunc(t.observers, func(o observer) bool {
			return o.id == id
		})
	}
}

// Timeline returns a copy of the entries of origin on the given day ("2006-01-02").
func (t *Tracker) Timeline(origin, day string) []Entry {
	return slices.Clone(t.timelines[TimelineKey{Origin: origin, Day: day}])
}

// TimelineFor returns a copy of today's entries for origin.
func (t *Tracker) TimelineFor(origin string) []Entry {
	entries := t.Timeline(origin, dayOf(t.clock()))
	if entries == nil {
		return []Entry{}
	}
	return entries
}

// NewAttributesSince returns, in order, the attributes first seen by origin
// today after cutoff. A zero cutoff means the session start, inclusive.
func (t *Tracker) NewAttributesSince(origin string, cutoff time.Time) []string {
	since := func(ts time.Time) bool { return ts.After(cutoff) }
	if cutoff.IsZero() {
		since = func(ts time.Time) bool { return !ts.Before(t.sessionStart) }
	}
	attrs := []string{}
	for _, entry := range t.TimelineFor(origin) {
		if entry.IsNewAttribute && since(entry.Timestamp) {
			attrs = append(attrs, entry.Attribute)
		}
	}
	return attrs
}

// Attributes returns the attributes origin has accessed, in first-access order.
func (t *Tracker) Attributes(origin string) []string {
	attrs, _ := t.attributes.Get(origin)
	return attrs.Items()
}

// Origins returns the origins that accessed at least one attribute, in first-access order.
func (t *Tracker) Origins() []string {
	return ledger.Keys(t.attributes)
}

// StartSession moves the session start to ts. Replays call it with the first
// recorded timestamp so elapsed times are measured from the capture start.
// A zero ts is ignored.
func (t *Tracker) StartSession(ts time.Time) {
	if !ts.IsZero() {
		t.sessionStart = ts
	}
}

// SessionStart returns when the current session started.
func (t *Tracker) SessionStart() time.Time {
	return t.sessionStart
}

// PruneBefore drops every timeline whose day is before cutoff's day and
// returns how many timelines were removed. Attribute sets are kept so novelty
// is still decided over the whole history.
func (t *Tracker) PruneBefore(cutoff time.Time) int {
	limit := dayOf(cutoff)
	removed := 0
	t.keys = slices.DeleteFunc(t.keys, func(key TimelineKey) bool {
		if key.Day < limit {
			delete(t.timelines, key)
			removed++
			return true
		}
		return false
	})
	return removed
}

// Clear forgets every attribute and timeline and restarts the session.
// Observers stay registered.
func (t *Tracker) Clear() {
	t.attributes.Clear()
	t.timelines = make(map[TimelineKey][]Entry)
	t.keys = nil
	t.sessionStart = t.clock()
}
