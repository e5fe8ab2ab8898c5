package risk

import "time"

const (
	// MaxScore is the upper bound of every score.
	MaxScore = 100

	// DefaultHighRiskThreshold is the tracking score above which an origin is high-risk.
	DefaultHighRiskThreshold = 50
)

// Tracking score weights.
const (
	pointsPerMethod     = 10
	maxActivityPoints   = 50
	knownTrackerBonus   = 25
	maxTimeSpanHours    = 24
	pointsPerHeaderHint = 10
)

// Privacy score penalties.
const (
	trackerPenalty       = 2
	fingerprinterPenalty = 5
	highRiskPenalty      = 10
)

// TrackingScore scores an origin's tracking profile:
//
//	10*methods + min(activities, 50) + 25 if known + min(whole hours of span, 24)
//
// clamped to [0, 100]. A negative span counts as zero.
func TrackingScore(methods, activities int, knownTracker bool, span time.Duration) int {
	score := pointsPerMethod * methods
	score += min(max(activities, 0), maxActivityPoints)
	if knownTracker {
		score += knownTrackerBonus
	}
	if span > 0 {
		score += min(int(span/time.Hour), maxTimeSpanHours)
	}
	return clamp(score)
}

// HeaderFingerprintScore scores an origin by how many distinct request header
// fingerprinting methods it triggered.
func HeaderFingerprintScore(methods int) int {
	return clamp(pointsPerHeaderHint * methods)
}

// PrivacyScore is 100 minus the penalties for tracking origins,
// fingerprinting origins and high-risk origins, never below zero.
func PrivacyScore(trackers, fingerprinters, highRisk int) int {
	return clamp(MaxScore - (trackerPenalty*trackers + fingerprinterPenalty*fingerprinters + highRiskPenalty*highRisk))
}

// IsHighRisk reports whether score exceeds threshold.
func IsHighRisk(score, threshold int) bool {
	return score > threshold
}

func clamp(score int) int {
	return min(max(score, 0), MaxScore)
}
