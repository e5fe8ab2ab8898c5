// Package metrics holds the Prometheus metrics for surveilscope.
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "surveilscope"

// Metrics holds all the Prometheus metrics for the engine and its surfaces.
type Metrics struct {
	EventsTotal          *prometheus.CounterVec
	EventsSkippedTotal   *prometheus.CounterVec
	EventsInvalidTotal   prometheus.Counter
	AlertsTotal          *prometheus.CounterVec
	NotifyErrorsTotal    prometheus.Counter
	PersistWritesTotal   prometheus.Counter
	PersistErrorsTotal   prometheus.Counter
	NATSPublishErrors    prometheus.Counter
	TrackedOrigins       prometheus.Gauge
	FingerprintedOrigins prometheus.Gauge
	BeaconingOrigins     prometheus.Gauge
	PrivacyScore         prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers every metric on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWith(reg, reg)
}

// NewWith registers every metric on reg and serves them from gatherer.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of events handled, by kind",
		}, []string{"kind"}),
		EventsSkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped because their input was malformed, by reason",
		}, []string{"reason"}),
		EventsInvalidTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_invalid_total",
			Help:      "Total number of event documents rejected at decoding",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Total number of alerts raised, by type and severity",
		}, []string{"type", "severity"}),
		NotifyErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Total number of failed notification deliveries",
		}),
		PersistWritesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_writes_total",
			Help:      "Total number of snapshot writes attempted",
		}),
		PersistErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Total number of failed snapshot writes",
		}),
		NATSPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nats_publish_errors_total",
			Help:      "Total number of NATS publish errors",
		}),
		TrackedOrigins: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_origins",
			Help:      "Number of origins in the tracking ledger",
		}),
		FingerprintedOrigins: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fingerprinted_origins",
			Help:      "Number of origins with recorded fingerprinting attributes",
		}),
		BeaconingOrigins: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "beaconing_origins",
			Help:      "Number of origins flagged as beaconing",
		}),
		PrivacyScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "privacy_score",
			Help:      "Privacy score of the last generated report",
		}),
		gatherer: gatherer,
	}
}

// Handler serves the registered metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Event counts a handled event.
func (m *Metrics) Event(kind string) {
	if m != nil {
		m.EventsTotal.WithLabelValues(kind).Inc()
	}
}

// Skipped counts an event dropped for malformed input.
func (m *Metrics) Skipped(reason string) {
	if m != nil {
		m.EventsSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// Invalid counts a document rejected at decoding.
func (m *Metrics) Invalid() {
	if m != nil {
		m.EventsInvalidTotal.Inc()
	}
}

// Alert counts a raised alert.
func (m *Metrics) Alert(alertType, severity string) {
	if m != nil {
		m.AlertsTotal.WithLabelValues(alertType, severity).Inc()
	}
}

// NotifyError counts a failed notification.
func (m *Metrics) NotifyError() {
	if m != nil {
		m.NotifyErrorsTotal.Inc()
	}
}

// PersistWrite counts a snapshot write and whether it failed.
func (m *Metrics) PersistWrite(err error) {
	if m == nil {
		return
	}
	m.PersistWritesTotal.Inc()
	if err != nil {
		m.PersistErrorsTotal.Inc()
	}
}

// NATSPublishError counts a failed NATS publish.
func (m *Metrics) NATSPublishError() {
	if m != nil {
		m.NATSPublishErrors.Inc()
	}
}

// Origins sets the ledger size gauges.
func (m *Metrics) Origins(tracked, fingerprinted, beaconing int) {
	if m == nil {
		return
	}
	m.TrackedOrigins.Set(float64(tracked))
	m.FingerprintedOrigins.Set(float64(fingerprinted))
	m.BeaconingOrigins.Set(float64(beaconing))
}

// Privacy sets the privacy score gauge.
func (m *Metrics) Privacy(score int) {
	if m != nil {
		m.PrivacyScore.Set(float64(score))
	}
}
