package model

import "time"

// SurveillanceReport is the aggregate view over every ledger at one point in time.
type SurveillanceReport struct {
	// Timestamp is when the report was generated.
	Timestamp time.Time `json:"timestamp"`

	// TotalTrackers is the number of origins in the tracking ledger.
	TotalTrackers int `json:"totalTrackers"`

	// TotalFingerprinters is the number of origins with at least one fingerprinting attribute.
	TotalFingerprinters int `json:"totalFingerprinters"`

	// HighRiskDomains lists tracking origins whose risk score exceeds RiskThreshold.
	HighRiskDomains []HighRiskDomain `json:"highRiskDomains"`

	// TrackingMethods is the union of every origin's method tags.
	TrackingMethods []string `json:"trackingMethods"`

	// PrivacyScore is 100 minus the weighted exposure, never below 0.
	PrivacyScore int `json:"privacyScore"`

	// RiskThreshold is the cutoff used for HighRiskDomains.
	RiskThreshold int `json:"riskThreshold"`

	// DataFlowMap groups third-party origins by the first-party site that loaded them.
	DataFlowMap []Pair[string, []string] `json:"dataFlowMap"`

	// Exfiltration summarizes the exfiltration ledger.
	Exfiltration ExfiltrationStats `json:"exfiltration"`

	// BeaconingOrigins lists origins currently flagged as beaconing.
	BeaconingOrigins []string `json:"beaconingOrigins"`

	// PersonalizedPricing lists "origin_tab" keys flagged for personalized pricing.
	PersonalizedPricing []string `json:"personalizedPricing"`

	// AlertCount is the number of alerts in the alert buffer.
	AlertCount int `json:"alertCount"`

	// CriticalAlertCount counts HIGH and CRITICAL alerts in the buffer.
	CriticalAlertCount int `json:"criticalAlertCount"`

	// Pages summarizes page-content analysis.
	Pages PageStats `json:"pages"`
}

// HighRiskDomain is one row of the high-risk section of a report.
type HighRiskDomain struct {
	Domain     string   `json:"domain"`
	RiskScore  int      `json:"riskScore"`
	Methods    []string `json:"methods"`
	Activities int      `json:"activities"`
}

// ExfiltrationStats summarizes exfiltration activity.
type ExfiltrationStats struct {
	Origins       int `json:"origins"`
	TotalAttempts int `json:"totalAttempts"`
	HighSeverity  int `json:"highSeverity"`
}

// PageStats summarizes analyzed pages.
type PageStats struct {
	Analyzed       int `json:"analyzed"`
	TrackingPixels int `json:"trackingPixels"`
	SocialWidgets  int `json:"socialWidgets"`
	Canvases       int `json:"canvases"`
	AnalyticsIDs   int `json:"analyticsIds"`
}

// HasHighRisk reports whether any origin crossed the risk threshold.
func (r *SurveillanceReport) HasHighRisk() bool {
	return len(r.HighRiskDomains) > 0
}

// IsClean reports whether nothing at all was observed.
func (r *SurveillanceReport) IsClean() bool {
	return r.TotalTrackers == 0 && r.TotalFingerprinters == 0 &&
		r.Exfiltration.Origins == 0 && len(r.BeaconingOrigins) == 0
}
