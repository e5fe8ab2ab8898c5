package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nao1215/surveilscope/internal/classifier"
	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/ledger"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
)

// Store is the persistent key-value store snapshots are written to.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, entries map[string][]byte) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// AlertObserver receives each alert as it is raised.
type AlertObserver func(model.Alert) error

// maxStoredPages caps the page analyses kept for the report.
const maxStoredPages = 50

// requestInfo is what the request phase leaves behind for the header and
// response phases of the same request.
type requestInfo struct {
	URL       string
	Origin    string
	TabID     int
	FrameID   int
	Initiator string
	Method    string
}

// Coordinator owns every ledger and the fingerprint delta tracker.
type Coordinator struct {
	classifier   *classifier.Classifier
	tracking     *ledger.TrackingLedger
	headerprints *ledger.HeaderFingerprintLedger
	exfiltration *ledger.ExfiltrationLedger
	beaconing    *ledger.BeaconingLedger
	prices       *ledger.PriceLedger
	alerts       *ledger.AlertLog
	tracker      *fingerprint.Tracker

	// dataFlow maps a first-party site to the third-party origins it loaded.
	dataFlow ledger.MemoryStore[*model.OrderedSet]

	pages         []*classifier.PageAnalysis
	pagesAnalyzed int

	requests *lru.Cache[string, requestInfo]
	tabSites map[int]string

	settings config.Settings

	alertObservers []alertObserver
	nextObserverID int

	store     Store
	persister *persister
	dirty     map[string]struct{}

	notifier Notifier
	clock    func() time.Time
	newID    func() string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	requestCacheSize int
}

type alertObserver struct {
	id int
	fn AlertObserver
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore enables persistence to store.
func WithStore(store Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithNotifier sets the notification sink for real-time alerts.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithClock sets the time source. Events that carry a timestamp use it instead.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettings sets the initial detection settings.
func WithSettings(s config.Settings) Option {
	return func(c *Coordinator) {
		c.settings = s.Clone()
	}
}

// WithMetrics records engine metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithRequestCacheSize bounds how many requests are remembered for
// correlating their header and response phases.
func WithRequestCacheSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.requestCacheSize = n
		}
	}
}

// WithIDGenerator replaces the alert ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New builds a Coordinator with empty ledgers. Call Close to stop the
// background writer when a store is configured.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		settings:         config.DefaultSettings(),
		tabSites:         make(map[int]string),
		dirty:            make(map[string]struct{}),
		clock:            time.Now,
		newID:            uuid.NewString,
		logger:           slog.Default(),
		requestCacheSize: config.DefaultRequestCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.classifier = classifier.New(c.settings.CustomTrackers...)
	c.tracking = ledger.NewTrackingLedger(nil, c.classifier.IsKnownTracker)
	c.headerprints = ledger.NewHeaderFingerprintLedger(nil)
	c.exfiltration = ledger.NewExfiltrationLedger(nil)
	c.beaconing = ledger.NewBeaconingLedger(nil)
	c.prices = ledger.NewPriceLedger(nil)
	c.alerts = ledger.NewAlertLog()
	c.tracker = fingerprint.NewTracker(
		fingerprint.WithClock(c.clock),
		fingerprint.WithLogger(c.logger),
	)

	// lru.New only fails for a non-positive size, which the option rejects.
	c.requests, _ = lru.New[string, requestInfo](c.requestCacheSize)

	if c.store != nil {
		c.persister = newPersister(c.store, c.logger, c.metrics)
	}
	return c
}

// Close waits for pending snapshot writes and stops the background writer.
func (c *Coordinator) Close() {
	if c.persister != nil {
		c.persister.close()
	}
}

// Flush waits until every snapshot handed to the background writer is written.
func (c *Coordinator) Flush() {
	if c.persister != nil {
		c.persister.flush()
	}
}

// Settings returns a copy of the current settings.
func (c *Coordinator) Settings() config.Settings {
	return c.settings.Clone()
}

// KnownTrackers returns the built-in and custom tracker domains.
func (c *Coordinator) KnownTrackers() []string {
	return c.classifier.KnownTrackers()
}

// StartSession restarts the fingerprinting session clock at ts.
func (c *Coordinator) StartSession(ts time.Time) {
	c.tracker.StartSession(ts)
}

// SessionStart returns when the current fingerprinting session started.
func (c *Coordinator) SessionStart() time.Time {
	return c.tracker.SessionStart()
}

// Alerts returns the kept alerts, oldest first.
func (c *Coordinator) Alerts() []model.Alert {
	return c.alerts.Alerts()
}

// RecentAlerts returns the newest n alerts, oldest first.
func (c *Coordinator) RecentAlerts(n int) []model.Alert {
	return c.alerts.Last(n)
}

// SubscribeTimeline registers fn for every new timeline entry.
// The returned function removes the subscription.
func (c *Coordinator) SubscribeTimeline(fn fingerprint.Observer) (cancel func()) {
	return c.tracker.Subscribe(fn)
}

// SubscribeAlerts registers fn for every raised alert.
// Panics and errors from fn are logged and do not reach other subscribers.
func (c *Coordinator) SubscribeAlerts(fn AlertObserver) (cancel func()) {
	id := c.nextObserverID
	c.nextObserverID++
	c.alertObservers = append(c.alertObservers, alertObserver{id: id, fn: fn})
	return func() {
		for i, o := range c.alertObservers {
			if o.id == id {
				c.alertObservers = append(c.alertObservers[:i:i], c.alertObservers[i+1:]...)
				return
			}
		}
	}
}

// now returns ts, or the clock when ts is zero.
func (c *Coordinator) now(ts time.Time) time.Time {
	if ts.IsZero() {
		return c.clock()
	}
	return ts
}
