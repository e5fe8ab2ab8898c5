package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/surveilscope/internal/classifier"
	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/ledger"
	"github.com/nao1215/surveilscope/internal/model"
)

// ExportVersion is written to every export document.
const ExportVersion = "1.0.0"

// Export is the full state document produced by ExportAll.
// Maps are carried as ordered key/value pairs and sets as lists.
type Export struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	TrackingDatabase    []model.Pair[string, *ledger.TrackingProfile]          `json:"trackingDatabase"`
	Fingerprints        []model.Pair[string, *ledger.HeaderFingerprintProfile] `json:"fingerprints"`
	PriceHistory        []model.Pair[string, *ledger.PriceHistory]             `json:"priceHistory"`
	FingerprintTimeline *fingerprint.Snapshot                                  `json:"fingerprintTimeline"`
	ForensicSummary     *fingerprint.Summary                                   `json:"forensicSummary,omitempty"`
	KnownTrackers       []string                                               `json:"knownTrackers"`
	ExfiltrationData    []model.Pair[string, *ledger.ExfiltrationProfile]      `json:"exfiltrationData"`
	BeaconingPatterns   []model.Pair[string, *ledger.BeaconingProfile]         `json:"beaconingPatterns"`
	SecurityAlerts      []model.Alert                                          `json:"securityAlerts"`
	Settings            *config.Settings                                       `json:"settings"`
	DataFlow            []model.Pair[string, []string]                         `json:"dataFlow"`
	Pages               *PageState                                             `json:"pages,omitempty"`
}

// PageState is the page-analysis part of the state.
type PageState struct {
	Analyzed int                        `json:"analyzed"`
	Recent   []*classifier.PageAnalysis `json:"recent"`
}

func (c *Coordinator) pageState() PageState {
	return PageState{Analyzed: c.pagesAnalyzed, Recent: c.Pages()}
}

// ExportAll returns a deep copy of every ledger, the settings and the known trackers.
func (c *Coordinator) ExportAll() *Export {
	timeline := c.tracker.Export()
	summary := c.tracker.Summary()
	settings := c.settings.Clone()
	pages := c.pageState()
	return &Export{
		Version:             ExportVersion,
		Timestamp:           c.clock(),
		TrackingDatabase:    c.tracking.Export(),
		Fingerprints:        c.headerprints.Export(),
		PriceHistory:        c.prices.Export(),
		FingerprintTimeline: &timeline,
		ForensicSummary:     &summary,
		KnownTrackers:       c.classifier.KnownTrackers(),
		ExfiltrationData:    c.exfiltration.Export(),
		BeaconingPatterns:   c.beaconing.Export(),
		SecurityAlerts:      c.alerts.Alerts(),
		Settings:            &settings,
		DataFlow:            c.dataFlowPairs(),
		Pages:               &pages,
	}
}

// ImportAll replaces the parts of the state present in doc. Absent (nil)
// parts are left untouched. The forensic summary is derived and ignored.
func (c *Coordinator) ImportAll(ctx context.Context, doc *Export) error {
	if doc == nil {
		return nil
	}
	if err := checkVersion(doc.Version); err != nil {
		return err
	}
	if doc.Settings != nil {
		if err := doc.Settings.Validate(); err != nil {
			return fmt.Errorf("invalid settings in export: %w", err)
		}
	}

	if doc.TrackingDatabase != nil {
		c.tracking.Import(doc.TrackingDatabase)
		c.markDirty(keyTrackingDatabase)
	}
	if doc.Fingerprints != nil {
		c.headerprints.Import(doc.Fingerprints)
		c.markDirty(keyFingerprints)
	}
	if doc.PriceHistory != nil {
		c.prices.Import(doc.PriceHistory)
		c.markDirty(keyPriceHistory)
	}
	if doc.FingerprintTimeline != nil {
		c.tracker.Import(*doc.FingerprintTimeline)
		c.markDirty(keyFingerprintTimeline)
	}
	if doc.ExfiltrationData != nil {
		c.exfiltration.Import(doc.ExfiltrationData)
		c.markDirty(keyExfiltrationData)
	}
	if doc.BeaconingPatterns != nil {
		c.beaconing.Import(doc.BeaconingPatterns)
		c.markDirty(keyBeaconingPatterns)
	}
	if doc.SecurityAlerts != nil {
		c.alerts.Restore(doc.SecurityAlerts)
		c.markDirty(keySecurityAlerts)
	}
	if doc.Settings != nil {
		c.applySettings(*doc.Settings)
	}
	c.addTrackers(doc.KnownTrackers...)
	if doc.DataFlow != nil {
		c.restoreDataFlow(doc.DataFlow)
		c.markDirty(keyDataFlow)
	}
	if doc.Pages != nil {
		c.restorePages(*doc.Pages)
		c.markDirty(keyPages)
	}

	c.logger.InfoContext(ctx, "imported state",
		"version", doc.Version,
		"trackers", c.tracking.Len(),
		"alerts", c.alerts.Len(),
	)
	c.commit()
	return nil
}

// checkVersion accepts documents of the same major version. An empty
// version is treated as current.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}
	major, _, _ := strings.Cut(version, ".")
	current, _, _ := strings.Cut(ExportVersion, ".")
	if major != current {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return nil
}

func (c *Coordinator) restoreDataFlow(pairs []model.Pair[string, []string]) {
	c.dataFlow.Clear()
	for _, pair := range pairs {
		origins, ok := c.dataFlow.Get(pair.Key)
		if !ok {
			origins = model.NewOrderedSet()
			c.dataFlow.Put(pair.Key, origins)
		}
		for _, origin := range pair.Value {
			origins.Add(origin)
		}
	}
}

func (c *Coordinator) restorePages(state PageState) {
	c.pagesAnalyzed = state.Analyzed
	c.pages = c.pages[:0]
	for _, page := range state.Recent {
		if page != nil {
			c.pages = append(c.pages, page)
		}
	}
	if len(c.pages) > maxStoredPages {
		c.pages = c.pages[len(c.pages)-maxStoredPages:]
	}
	if c.pagesAnalyzed < len(c.pages) {
		c.pagesAnalyzed = len(c.pages)
	}
}

// LoadFromStore restores every snapshot found in the store, then prunes
// timelines older than the retention window. Parts that fail to decode are
// skipped and reported together in the returned error.
func (c *Coordinator) LoadFromStore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.Get(ctx, snapshotKeys...)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}

	var errs []error
	for _, key := range snapshotKeys {
		data, ok := entries[key]
		if !ok {
			continue
		}
		if err := c.restorePart(key, data); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, key, err))
		}
	}

	clear(c.dirty)
	c.logger.DebugContext(ctx, "loaded snapshots", "parts", len(entries), "failed", len(errs))
	c.PruneExpired(ctx)
	return errors.Join(errs...)
}

func (c *Coordinator) restorePart(key string, data []byte) error {
	switch key {
	case keyTrackingDatabase:
		var pairs []model.Pair[string, *ledger.TrackingProfile]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.tracking.Import(pairs)
	case keyFingerprints:
		var pairs []model.Pair[string, *ledger.HeaderFingerprintProfile]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.headerprints.Import(pairs)
	case keyPriceHistory:
		var pairs []model.Pair[string, *ledger.PriceHistory]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.prices.Import(pairs)
	case keyFingerprintTimeline:
		var snap fingerprint.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		c.tracker.Import(snap)
	case keyExfiltrationData:
		var pairs []model.Pair[string, *ledger.ExfiltrationProfile]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.exfiltration.Import(pairs)
	case keyBeaconingPatterns:
		var pairs []model.Pair[string, *ledger.BeaconingProfile]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.beaconing.Import(pairs)
	case keySecurityAlerts:
		var alerts []model.Alert
		if err := json.Unmarshal(data, &alerts); err != nil {
			return err
		}
		c.alerts.Restore(alerts)
	case keySettings:
		var settings config.Settings
		if err := json.Unmarshal(data, &settings); err != nil {
			return err
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		c.applySettings(settings)
	case keyDataFlow:
		var pairs []model.Pair[string, []string]
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		c.restoreDataFlow(pairs)
	case keyPages:
		var state PageState
		if err := json.Unmarshal(data, &state); err != nil {
			return err
		}
		c.restorePages(state)
	}
	return nil
}

// ClearAll resets every ledger, the alert log, the data-flow map and the
// page analyses, and restarts the fingerprinting session. Settings and
// custom trackers are kept.
func (c *Coordinator) ClearAll(ctx context.Context) {
	c.tracking.Clear()
	c.headerprints.Clear()
	c.prices.Clear()
	c.tracker.Clear()
	c.exfiltration.Clear()
	c.beaconing.Clear()
	c.alerts.Clear()
	c.dataFlow.Clear()
	c.pages = nil
	c.pagesAnalyzed = 0
	clear(c.tabSites)
	c.requests.Purge()

	c.markDirty(
		keyTrackingDatabase,
		keyFingerprints,
		keyPriceHistory,
		keyFingerprintTimeline,
		keyExfiltrationData,
		keyBeaconingPatterns,
		keySecurityAlerts,
		keyDataFlow,
		keyPages,
	)
	c.logger.InfoContext(ctx, "cleared all surveillance data")
	c.commit()
}
