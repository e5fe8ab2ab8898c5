package model

import "time"

// AlertType identifies what kind of surveillance behavior raised an alert.
type AlertType string

const (
	// AlertDataExfiltration is raised when a request carries HIGH-or-above exfiltration indicators.
	AlertDataExfiltration AlertType = "data-exfiltration"

	// AlertBeaconing is raised on every beaconing detection.
	AlertBeaconing AlertType = "beaconing-detected"

	// AlertHighRiskFingerprinting marks fingerprinting alerts carried in imported data.
	AlertHighRiskFingerprinting AlertType = "high-risk-fingerprinting"
)

// AlertData is the origin-level payload attached to an alert.
type AlertData struct {
	// Origin is the hostname that triggered the alert.
	Origin string `json:"origin"`

	// URL is the request URL, when the alert came from a single request.
	URL string `json:"url,omitempty"`

	// DataTypes lists the exfiltration indicators (e.g. "body-canvas", "endpoint-collect").
	DataTypes []string `json:"dataTypes,omitempty"`

	// Severity is the severity carried by the signal, if it had one.
	// Alerts without an explicit severity default to MEDIUM.
	Severity *Severity `json:"severity,omitempty"`

	// Interval is the detected beaconing period.
	Interval time.Duration `json:"interval,omitempty"`

	// Confidence is the beaconing confidence in [0,1].
	Confidence float64 `json:"confidence,omitempty"`
}

// Alert is an immutable record of a surveillance detection.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Data      AlertData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
}

// NewAlert builds an alert whose severity is taken from data, defaulting to MEDIUM.
func NewAlert(id string, alertType AlertType, data AlertData, ts time.Time) Alert {
	severity := SeverityMedium
	if data.Severity != nil {
		severity = *data.Severity
	}
	return Alert{
		ID:        id,
		Type:      alertType,
		Data:      data,
		Timestamp: ts,
		Severity:  severity,
	}
}

// Notification is what a notification sink displays for an alert.
type Notification struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// AlertInfo contains display metadata for an alert type.
type AlertInfo struct {
	Title          string
	Impact         string
	Recommendation string
}

// alertInfoMapping maps alert types to their display metadata.
var alertInfoMapping = map[AlertType]AlertInfo{
	AlertDataExfiltration: {
		Title:          "Data Exfiltration Detected",
		Impact:         "Fingerprint or personal data is being sent to a remote origin.",
		Recommendation: "Block the origin or strip the offending parameters with a content blocker.",
	},
	AlertBeaconing: {
		Title:          "Beaconing Pattern Detected",
		Impact:         "The page reports back to a remote origin at a regular interval.",
		Recommendation: "Close the tab when idle or block the beacon endpoint.",
	},
	AlertHighRiskFingerprinting: {
		Title:          "High-Risk Fingerprinting",
		Impact:         "The origin reads enough device attributes to derive a stable identifier.",
		Recommendation: "Enable fingerprinting protection in the browser.",
	},
}

// GetAlertInfo returns the display metadata for an alert type.
// Unknown types get a generic "Security Alert" title.
func GetAlertInfo(alertType AlertType) AlertInfo {
	if info, ok := alertInfoMapping[alertType]; ok {
		return info
	}
	return AlertInfo{
		Title:          "Security Alert",
		Impact:         "Unclassified surveillance behavior.",
		Recommendation: "Review the alert data manually.",
	}
}
