package coordinator

import (
	"time"

	"github.com/nao1215/surveilscope/internal/classifier"
	"github.com/nao1215/surveilscope/internal/fingerprint"
	"github.com/nao1215/surveilscope/internal/ledger"
	"github.com/nao1215/surveilscope/internal/model"
	"github.com/nao1215/surveilscope/internal/risk"
)

// maxOverviewAlerts caps the alerts listed in an ExfiltrationOverview.
const maxOverviewAlerts = 20

// GenerateReport aggregates every ledger into a surveillance report.
func (c *Coordinator) GenerateReport() *model.SurveillanceReport {
	threshold := c.settings.RiskThreshold
	report := &model.SurveillanceReport{
		Timestamp:           c.clock(),
		TotalTrackers:       c.tracking.Len(),
		TotalFingerprinters: c.fingerprintingOrigins(),
		HighRiskDomains:     []model.HighRiskDomain{},
		TrackingMethods:     []string{},
		RiskThreshold:       threshold,
		DataFlowMap:         c.dataFlowPairs(),
		BeaconingOrigins:    []string{},
		PersonalizedPricing: []string{},
		AlertCount:          c.alerts.Len(),
		CriticalAlertCount:  c.alerts.CountAtLeast(model.SeverityHigh),
	}

	methods := model.NewOrderedSet()
	for _, profile := range c.tracking.Profiles() {
		if risk.IsHighRisk(profile.RiskScore, threshold) {
			report.HighRiskDomains = append(report.HighRiskDomains, model.HighRiskDomain{
				Domain:     profile.Origin,
				RiskScore:  profile.RiskScore,
				Methods:    profile.TrackingMethods.Items(),
				Activities: len(profile.Activities),
			})
		}
		for _, method := range profile.TrackingMethods.Items() {
			methods.Add(method)
		}
	}
	report.TrackingMethods = methods.Items()

	report.PrivacyScore = risk.PrivacyScore(
		report.TotalTrackers,
		report.TotalFingerprinters,
		len(report.HighRiskDomains),
	)

	report.Exfiltration = model.ExfiltrationStats{
		Origins:       c.exfiltration.Len(),
		TotalAttempts: c.exfiltration.TotalAttempts(),
	}
	for _, profile := range c.exfiltration.Profiles() {
		if profile.Severity >= model.SeverityHigh {
			report.Exfiltration.HighSeverity++
		}
	}

	for _, profile := range c.beaconing.Beaconing() {
		report.BeaconingOrigins = append(report.BeaconingOrigins, profile.Origin)
	}
	for _, pair := range c.prices.Export() {
		if pair.Value.PersonalizedPricing {
			report.PersonalizedPricing = append(report.PersonalizedPricing, pair.Key)
		}
	}

	report.Pages.Analyzed = c.pagesAnalyzed
	for _, page := range c.pages {
		report.Pages.TrackingPixels += len(page.TrackingPixels)
		report.Pages.SocialWidgets += len(page.SocialWidgets)
		report.Pages.Canvases += len(page.Canvases)
		report.Pages.AnalyticsIDs += len(page.AnalyticsIDs)
	}

	c.metrics.Origins(report.TotalTrackers, report.TotalFingerprinters, len(report.BeaconingOrigins))
	c.metrics.Privacy(report.PrivacyScore)
	return report
}

// fingerprintingOrigins counts the distinct origins seen fingerprinting,
// through script API access or request headers.
func (c *Coordinator) fingerprintingOrigins() int {
	origins := model.NewOrderedSet()
	for _, origin := range c.tracker.Origins() {
		origins.Add(origin)
	}
	for _, origin := range c.headerprints.Origins() {
		origins.Add(origin)
	}
	return origins.Len()
}

// ExfiltrationRow is one origin of an ExfiltrationOverview.
type ExfiltrationRow struct {
	Domain        string         `json:"domain"`
	DataTypes     []string       `json:"dataTypes"`
	Severity      model.Severity `json:"severity"`
	TotalAttempts int            `json:"totalAttempts"`
	LastSeen      time.Time      `json:"lastSeen"`
}

// BeaconingRow is one beaconing origin of an ExfiltrationOverview.
type BeaconingRow struct {
	Domain     string        `json:"domain"`
	Interval   time.Duration `json:"interval"`
	Confidence float64       `json:"confidence"`
	Detected   time.Time     `json:"detected"`
}

// ExfiltrationOverview is the security view over exfiltration and beaconing.
type ExfiltrationOverview struct {
	TotalDomains         int               `json:"totalDomains"`
	TotalAttempts        int               `json:"totalAttempts"`
	CriticalAlerts       int               `json:"criticalAlerts"`
	ExfiltrationAttempts []ExfiltrationRow `json:"exfiltrationAttempts"`
	BeaconingPatterns    []BeaconingRow    `json:"beaconingPatterns"`
	SecurityAlerts       []model.Alert     `json:"securityAlerts"`
}

// ExfiltrationOverview summarizes exfiltration attempts, beaconing origins
// and the most recent alerts.
func (c *Coordinator) ExfiltrationOverview() ExfiltrationOverview {
	overview := ExfiltrationOverview{
		TotalDomains:         c.exfiltration.Len(),
		TotalAttempts:        c.exfiltration.TotalAttempts(),
		CriticalAlerts:       c.alerts.CountAtLeast(model.SeverityHigh),
		ExfiltrationAttempts: []ExfiltrationRow{},
		BeaconingPatterns:    []BeaconingRow{},
		SecurityAlerts:       c.alerts.Last(maxOverviewAlerts),
	}
	for _, profile := range c.exfiltration.Profiles() {
		overview.ExfiltrationAttempts = append(overview.ExfiltrationAttempts, ExfiltrationRow{
			Domain:        profile.Origin,
			DataTypes:     profile.DataTypes.Items(),
			Severity:      profile.Severity,
			TotalAttempts: profile.TotalAttempts,
			LastSeen:      profile.LastSeen,
		})
	}
	for _, profile := range c.beaconing.Beaconing() {
		overview.BeaconingPatterns = append(overview.BeaconingPatterns, BeaconingRow{
			Domain:     profile.Origin,
			Interval:   profile.Pattern.Interval,
			Confidence: profile.Pattern.Confidence,
			Detected:   profile.Pattern.DetectedAt,
		})
	}
	return overview
}

// ForensicSummary returns the fingerprinting overview of the delta tracker.
func (c *Coordinator) ForensicSummary() fingerprint.Summary {
	return c.tracker.Summary()
}

// TimelineForOrigin returns today's timeline entries of origin.
func (c *Coordinator) TimelineForOrigin(origin string) []fingerprint.Entry {
	return c.tracker.TimelineFor(origin)
}

// NewAttributesSince returns the attributes origin read for the first time
// after cutoff today.
func (c *Coordinator) NewAttributesSince(origin string, cutoff time.Time) []string {
	return c.tracker.NewAttributesSince(origin, cutoff)
}

// TrackingProfile returns the tracking profile of origin.
func (c *Coordinator) TrackingProfile(origin string) (*ledger.TrackingProfile, bool) {
	return c.tracking.Get(origin)
}

// Pages returns the kept page analyses, oldest first.
func (c *Coordinator) Pages() []*classifier.PageAnalysis {
	pages := make([]*classifier.PageAnalysis, len(c.pages))
	copy(pages, c.pages)
	return pages
}

func (c *Coordinator) dataFlowPairs() []model.Pair[string, []string] {
	pairs := make([]model.Pair[string, []string], 0, c.dataFlow.Len())
	c.dataFlow.Range(func(site string, origins *model.OrderedSet) bool {
		pairs = append(pairs, model.Pair[string, []string]{Key: site, Value: origins.Items()})
		return true
	})
	return pairs
}
