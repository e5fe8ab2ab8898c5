package config

import "strings"

// DefaultRiskThreshold is the risk score above which an origin counts as high risk.
const DefaultRiskThreshold = 50

// DefaultDataRetentionDays is how many calendar days of timeline data are kept.
const DefaultDataRetentionDays = 30

// Settings are the detection options the coordinator runs with.
// The JSON names are the ones used by the settings API and the export document.
type Settings struct {
	EnableTrackingDetection       bool     `yaml:"enableTrackingDetection" json:"enableTrackingDetection"`
	EnableFingerprintingDetection bool     `yaml:"enableFingerprintingDetection" json:"enableFingerprintingDetection"`
	EnablePriceTracking           bool     `yaml:"enablePriceTracking" json:"enablePriceTracking"`
	EnableNetworkAnalysis         bool     `yaml:"enableNetworkAnalysis" json:"enableNetworkAnalysis"`
	RiskThreshold                 int      `yaml:"riskThreshold" json:"riskThreshold"`
	DataRetentionDays             int      `yaml:"dataRetentionDays" json:"dataRetentionDays"`
	RealTimeAlerts                bool     `yaml:"realTimeAlerts" json:"realTimeAlerts"`
	CustomTrackers                []string `yaml:"customTrackers" json:"customTrackers"`
}

// DefaultSettings returns the settings used when nothing else is configured.
func DefaultSettings() Settings {
	return Settings{
		EnableTrackingDetection:       true,
		EnableFingerprintingDetection: true,
		EnablePriceTracking:           true,
		EnableNetworkAnalysis:         true,
		RiskThreshold:                 DefaultRiskThreshold,
		DataRetentionDays:             DefaultDataRetentionDays,
		RealTimeAlerts:                true,
		CustomTrackers:                []string{},
	}
}

// Validate checks the numeric options.
// A zero DataRetentionDays disables retention.
func (s Settings) Validate() error {
	if s.RiskThreshold < 0 || s.RiskThreshold > 100 {
		return ErrInvalidRiskThreshold
	}
	if s.DataRetentionDays < 0 {
		return ErrInvalidRetention
	}
	return nil
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	c := s
	c.CustomTrackers = append([]string{}, s.CustomTrackers...)
	return c
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	EnableTrackingDetection       *bool    `yaml:"enableTrackingDetection,omitempty" json:"enableTrackingDetection,omitempty"`
	EnableFingerprintingDetection *bool    `yaml:"enableFingerprintingDetection,omitempty" json:"enableFingerprintingDetection,omitempty"`
	EnablePriceTracking           *bool    `yaml:"enablePriceTracking,omitempty" json:"enablePriceTracking,omitempty"`
	EnableNetworkAnalysis         *bool    `yaml:"enableNetworkAnalysis,omitempty" json:"enableNetworkAnalysis,omitempty"`
	RiskThreshold                 *int     `yaml:"riskThreshold,omitempty" json:"riskThreshold,omitempty"`
	DataRetentionDays             *int     `yaml:"dataRetentionDays,omitempty" json:"dataRetentionDays,omitempty"`
	RealTimeAlerts                *bool    `yaml:"realTimeAlerts,omitempty" json:"realTimeAlerts,omitempty"`
	CustomTrackers                []string `yaml:"customTrackers,omitempty" json:"customTrackers,omitempty"`
}

// Merge returns s with every field set in patch applied.
// Custom trackers are unioned with the existing list, keeping first-seen order.
func (s Settings) Merge(patch SettingsPatch) Settings {
	out := s.Clone()
	if patch.EnableTrackingDetection != nil {
		out.EnableTrackingDetection = *patch.EnableTrackingDetection
	}
	if patch.EnableFingerprintingDetection != nil {
		out.EnableFingerprintingDetection = *patch.EnableFingerprintingDetection
	}
	if patch.EnablePriceTracking != nil {
		out.EnablePriceTracking = *patch.EnablePriceTracking
	}
	if patch.EnableNetworkAnalysis != nil {
		out.EnableNetworkAnalysis = *patch.EnableNetworkAnalysis
	}
	if patch.RiskThreshold != nil {
		out.RiskThreshold = *patch.RiskThreshold
	}
	if patch.DataRetentionDays != nil {
		out.DataRetentionDays = *patch.DataRetentionDays
	}
	if patch.RealTimeAlerts != nil {
		out.RealTimeAlerts = *patch.RealTimeAlerts
	}

	seen := make(map[string]struct{}, len(out.CustomTrackers))
	for _, tracker := range out.CustomTrackers {
		seen[tracker] = struct{}{}
	}
	for _, tracker := range patch.CustomTrackers {
		tracker = strings.TrimSpace(tracker)
		if tracker == "" {
			continue
		}
		if _, ok := seen[tracker]; ok {
			continue
		}
		seen[tracker] = struct{}{}
		out.CustomTrackers = append(out.CustomTrackers, tracker)
	}
	return out
}
