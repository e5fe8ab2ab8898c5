package coordinator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/surveilscope/internal/classifier"
	"github.com/nao1215/surveilscope/internal/event"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/ledger"
	"github.com/nao1215/surveilscope/internal/model"
)

// Skip reasons reported to metrics.
const (
	skipMalformedURL = "malformed-url"
	skipNoHost       = "no-host"
	skipMalformedAPI = "malformed-api-access"
	skipPageAnalysis = "page-analysis"
)

// Handle routes one observation through the classifiers into the ledgers.
// Malformed input is skipped and nil is returned; only an event type outside
// the closed set is an error.
func (c *Coordinator) Handle(ctx context.Context, ev event.Event) error {
	if ev == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedEvent)
	}

	switch e := ev.(type) {
	case *event.Request:
		c.handleRequest(ctx, e)
	case *event.RequestHeaders:
		c.handleRequestHeaders(ctx, e)
	case *event.Response:
		c.handleResponse(ctx, e)
	case *event.APIAccess:
		c.handleAPIAccess(ctx, e)
	case *event.Page:
		c.handlePage(ctx, e)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedEvent, ev)
	}

	c.metrics.Event(string(ev.Kind()))
	c.commit()
	return nil
}

// parseHost parses rawURL and returns it with its hostname, or false when the
// event must be skipped.
func (c *Coordinator) parseHost(ctx context.Context, kind event.Kind, rawURL string) (*url.URL, string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		c.skip(ctx, kind, skipMalformedURL, err)
		return nil, "", false
	}
	host := u.Hostname()
	if host == "" {
		c.skip(ctx, kind, skipNoHost, nil)
		return nil, "", false
	}
	return u, host, true
}

func (c *Coordinator) skip(ctx context.Context, kind event.Kind, reason string, err error) {
	c.metrics.Skipped(reason)
	attrs := []any{"kind", string(kind), "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.DebugContext(ctx, "skipped event", attrs...)
}

func (c *Coordinator) handleRequest(ctx context.Context, e *event.Request) {
	u, host, ok := c.parseHost(ctx, event.KindRequest, e.URL)
	if !ok {
		return
	}
	ts := c.now(e.Timestamp)

	if e.RequestID != "" {
		c.requests.Add(e.RequestID, requestInfo{
			URL:       e.URL,
			Origin:    host,
			TabID:     e.TabID,
			FrameID:   e.FrameID,
			Initiator: e.Initiator,
			Method:    e.Method,
		})
	}

	if c.settings.EnableTrackingDetection {
		isTracker := c.classifier.IsTrackingDomain(host)
		hasParams := classifier.HasTrackingParameters(u)
		if isTracker || hasParams {
			c.recordActivity(ledger.Activity{
				Origin:        host,
				URL:           e.URL,
				Type:          ledger.ActivityRequest,
				Method:        e.Method,
				TabID:         e.TabID,
				FrameID:       e.FrameID,
				Initiator:     e.Initiator,
				Timestamp:     ts,
				ThirdParty:    isTracker,
				URLParameters: hasParams,
			})
		}
	}

	if c.settings.EnableNetworkAnalysis {
		if signal, found := classifier.AnalyzeExfiltration(u, e.Body); found {
			c.recordExfiltration(ctx, ledger.ExfiltrationAttempt{
				Origin:    host,
				URL:       e.URL,
				Method:    e.Method,
				TabID:     e.TabID,
				Timestamp: ts,
				DataTypes: signal.DataTypes,
				Severity:  signal.Severity,
				Size:      signal.Size,
			})
		}
		c.observeRequest(ctx, host, ledger.BeaconSample{
			Timestamp: ts,
			URL:       e.URL,
			Method:    e.Method,
		}, ts)
	}

	if c.settings.EnablePriceTracking && classifier.IsPriceRequest(u) {
		c.prices.Record(host, e.TabID, ledger.PricePoint{
			Timestamp: ts,
			URL:       e.URL,
			Method:    e.Method,
		}, ts)
		c.markDirty(keyPriceHistory)
	}
}

func (c *Coordinator) handleRequestHeaders(ctx context.Context, e *event.RequestHeaders) {
	if !c.settings.EnableFingerprintingDetection {
		return
	}
	_, host, ok := c.parseHost(ctx, event.KindRequestHeaders, e.URL)
	if !ok {
		return
	}

	methods := classifier.DetectFingerprinting(e.Headers)
	if len(methods) == 0 {
		return
	}

	tabID := e.TabID
	if info, found := c.requests.Peek(e.RequestID); found && tabID == 0 {
		tabID = info.TabID
	}
	ts := c.now(e.Timestamp)

	c.headerprints.Record(host, ledger.HeaderAttempt{
		URL:       e.URL,
		TabID:     tabID,
		Timestamp: ts,
		Methods:   methods,
	})
	c.markDirty(keyFingerprints)

	for _, method := range methods {
		c.recordFingerprintAccess(host, method, fingerprint.Details{
			Type: fingerprint.DetailFingerprintingMethod,
			URL:  e.URL,
		})
	}
}

func (c *Coordinator) handleResponse(ctx context.Context, e *event.Response) {
	if !c.settings.EnableTrackingDetection {
		return
	}
	_, host, ok := c.parseHost(ctx, event.KindResponse, e.URL)
	if !ok {
		return
	}

	info, _ := c.requests.Peek(e.RequestID)
	tabID := e.TabID
	if tabID == 0 {
		tabID = info.TabID
	}
	ts := c.now(e.Timestamp)

	if found := classifier.FindTrackingHeaders(e.Headers); len(found) > 0 {
		names := make([]string, 0, len(found))
		for _, h := range found {
			names = append(names, strings.ToLower(h.Name))
		}
		c.recordActivity(ledger.Activity{
			Origin:          host,
			URL:             e.URL,
			Type:            ledger.ActivityResponse,
			TabID:           tabID,
			FrameID:         info.FrameID,
			Initiator:       info.Initiator,
			Timestamp:       ts,
			ResponseHeaders: true,
			TrackingHeaders: names,
		})
	}

	for _, header := range e.Headers.Values("Set-Cookie") {
		cookies := classifier.ParseCookieHeader(header)
		if !classifier.ClassifyCookie(cookies) {
			continue
		}
		names := make([]string, 0, 1)
		if len(cookies) > 0 {
			names = append(names, cookies[0].Name)
		}
		c.recordActivity(ledger.Activity{
			Origin:      host,
			URL:         e.URL,
			Type:        ledger.ActivityCookie,
			TabID:       tabID,
			FrameID:     info.FrameID,
			Initiator:   info.Initiator,
			Timestamp:   ts,
			Cookie:      true,
			CookieNames: names,
		})
	}
}

func (c *Coordinator) handleAPIAccess(ctx context.Context, e *event.APIAccess) {
	if !c.settings.EnableFingerprintingDetection {
		return
	}
	if e.Origin == "" || e.Method == "" {
		c.skip(ctx, event.KindAPIAccess, skipMalformedAPI, nil)
		return
	}

	details := fingerprint.Details{
		Type:     fingerprint.DetailAPIAccess,
		URL:      e.URL,
		Category: e.Category,
		Severity: e.Severity,
	}
	if info, ok := classifier.LookupAPI(e.Method); ok {
		if details.Category == "" {
			details.Category = info.Category
		}
		if details.Severity == nil {
			severity := info.Severity
			details.Severity = &severity
		}
	}
	c.recordFingerprintAccess(e.Origin, e.Method, details)
}

func (c *Coordinator) handlePage(ctx context.Context, e *event.Page) {
	if !c.settings.EnableTrackingDetection && !c.settings.EnableFingerprintingDetection {
		return
	}
	_, host, ok := c.parseHost(ctx, event.KindPage, e.URL)
	if !ok {
		return
	}
	if e.TabID != 0 {
		c.tabSites[e.TabID] = classifier.Site(host)
	}

	analysis, err := classifier.AnalyzePage(e.URL, strings.NewReader(e.HTML))
	if err != nil {
		c.skip(ctx, event.KindPage, skipPageAnalysis, err)
		return
	}

	c.pagesAnalyzed++
	c.pages = append(c.pages, analysis)
	if len(c.pages) > maxStoredPages {
		c.pages = c.pages[len(c.pages)-maxStoredPages:]
	}
	c.markDirty(keyPages)
}

func (c *Coordinator) recordActivity(activity ledger.Activity) *ledger.TrackingProfile {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = c.clock()
	}
	profile := c.tracking.Record(activity)
	c.markDirty(keyTrackingDatabase)
	c.linkDataFlow(activity)
	return profile
}

// linkDataFlow attributes activity to a first-party site via its initiator,
// falling back to the site of the page loaded in its tab.
func (c *Coordinator) linkDataFlow(activity ledger.Activity) {
	firstParty := classifier.InitiatorSite(activity.Initiator)
	if firstParty == "" && activity.TabID != 0 {
		firstParty = c.tabSites[activity.TabID]
	}
	if firstParty == "" || firstParty == classifier.Site(activity.Origin) {
		return
	}

	origins, ok := c.dataFlow.Get(firstParty)
	if !ok {
		origins = model.NewOrderedSet()
		c.dataFlow.Put(firstParty, origins)
	}
	if origins.Add(activity.Origin) {
		c.markDirty(keyDataFlow)
	}
}

func (c *Coordinator) recordFingerprintAccess(origin, attribute string, details fingerprint.Details) fingerprint.Entry {
	entry := c.tracker.Record(origin, attribute, details)
	c.markDirty(keyFingerprintTimeline)
	return entry
}

func (c *Coordinator) recordExfiltration(ctx context.Context, attempt ledger.ExfiltrationAttempt) *ledger.ExfiltrationProfile {
	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = c.clock()
	}
	profile := c.exfiltration.Record(attempt)
	c.markDirty(keyExfiltrationData)

	if attempt.Severity >= model.SeverityHigh {
		severity := attempt.Severity
		c.raise(ctx, model.AlertDataExfiltration, model.AlertData{
			Origin:    attempt.Origin,
			URL:       attempt.URL,
			DataTypes: attempt.DataTypes,
			Severity:  &severity,
		}, attempt.Timestamp)
	}
	return profile
}

func (c *Coordinator) observeRequest(ctx context.Context, origin string, sample ledger.BeaconSample, now time.Time) (ledger.Detection, bool) {
	if now.IsZero() {
		now = c.clock()
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	detection, detected := c.beaconing.Observe(origin, sample, now)
	c.markDirty(keyBeaconingPatterns)

	if detected {
		c.raise(ctx, model.AlertBeaconing, model.AlertData{
			Origin:     origin,
			URL:        sample.URL,
			Interval:   detection.Pattern.Interval,
			Confidence: detection.Pattern.Confidence,
		}, now)
	}
	return detection, detected
}

// RecordActivity adds a tracking activity to the tracking ledger and links a
// third-party origin to the first-party site that loaded it.
func (c *Coordinator) RecordActivity(activity ledger.Activity) *ledger.TrackingProfile {
	defer c.commit()
	return c.recordActivity(activity)
}

// RecordFingerprintAccess records that origin read attribute.
func (c *Coordinator) RecordFingerprintAccess(origin, attribute string, details fingerprint.Details) fingerprint.Entry {
	defer c.commit()
	return c.recordFingerprintAccess(origin, attribute, details)
}

// RecordExfiltration adds attempt to the exfiltration ledger and raises a
// data-exfiltration alert when its severity is HIGH or above.
func (c *Coordinator) RecordExfiltration(ctx context.Context, attempt ledger.ExfiltrationAttempt) *ledger.ExfiltrationProfile {
	defer c.commit()
	return c.recordExfiltration(ctx, attempt)
}

// ObserveRequest feeds one request into beaconing detection and raises a
// beaconing alert on every detection.
func (c *Coordinator) ObserveRequest(ctx context.Context, origin string, sample ledger.BeaconSample, now time.Time) (ledger.Detection, bool) {
	defer c.commit()
	return c.observeRequest(ctx, origin, sample, now)
}
