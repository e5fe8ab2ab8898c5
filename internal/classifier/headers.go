package classifier

import (
	"slices"
	"strings"

	"github.com/nao1215/surveilscope/internal/event"
)

// Request header fingerprinting method names.
const (
	MethodDetailedUserAgent    = "detailed-user-agent"
	MethodAcceptHeaderAnalysis = "accept-header-analysis"
	MethodLanguageFingerprint  = "language-fingerprinting"
)

const (
	// maxPlainUserAgentLength is the longest user-agent considered ordinary.
	maxPlainUserAgentLength = 200

	// maxPlainLanguageCount is the largest accept-language list considered ordinary.
	maxPlainLanguageCount = 3
)

// suspiciousResponseHeaders are response header names (lower case) that carry
// client identity or tracking state.
var suspiciousResponseHeaders = []string{
	"x-forwarded-for", "x-real-ip", "x-client-ip",
	"set-cookie", "x-tracking-id", "x-visitor-id",
	"x-session-id", "x-correlation-id",
}

// HeaderClassification is the result of classifying one request/response pair.
type HeaderClassification struct {
	// TrackingHeaders are the response headers matching a suspicious name.
	TrackingHeaders event.Headers

	// FingerprintingSignals are the request header heuristics that fired.
	FingerprintingSignals []string
}

// ClassifyHeaders classifies request and response headers together.
// Either list may be nil.
func ClassifyHeaders(request, response event.Headers) HeaderClassification {
	return HeaderClassification{
		TrackingHeaders:       FindTrackingHeaders(response),
		FingerprintingSignals: DetectFingerprinting(request),
	}
}

// FindTrackingHeaders returns the headers whose name matches one of the
// suspicious response header names, case-insensitively and exactly.
func FindTrackingHeaders(headers event.Headers) event.Headers {
	var found event.Headers
	for _, h := range headers {
		if slices.Contains(suspiciousResponseHeaders, strings.ToLower(h.Name)) {
			found = append(found, h)
		}
	}
	return found
}

// DetectFingerprinting applies the request header heuristics and returns the
// method name of every heuristic that fired, once per matching header.
func DetectFingerprinting(headers event.Headers) []string {
	var methods []string
	for _, h := range headers {
		switch strings.ToLower(h.Name) {
		case "user-agent":
			if len(h.Value) > maxPlainUserAgentLength {
				methods = append(methods, MethodDetailedUserAgent)
			}
		case "accept":
			if strings.Contains(h.Value, "*/*") {
				methods = append(methods, MethodAcceptHeaderAnalysis)
			}
		case "accept-language":
			if len(strings.Split(h.Value, ",")) > maxPlainLanguageCount {
				methods = append(methods, MethodLanguageFingerprint)
			}
		}
	}
	return methods
}
