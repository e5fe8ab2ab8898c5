package classifier

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/nao1215/surveilscope/internal/event"
	"github.com/nao1215/surveilscope/internal/model"
)

const (
	// MaxBodyScanBytes caps the body text scanned for fingerprint keywords.
	MaxBodyScanBytes = 1000

	// LargePayloadBytes is the estimated body size above which a request is
	// flagged as a bulk upload.
	LargePayloadBytes = 1000

	// IndicatorLargePayload is added when the body exceeds LargePayloadBytes.
	IndicatorLargePayload = "large-payload"
)

// Indicator prefixes. Each indicator is the prefix followed by the matched keyword.
const (
	PrefixURLParam = "url-param-"
	PrefixBody     = "body-"
	PrefixEndpoint = "endpoint-"
)

// sensitiveParamFragments are looked for in the encoded query string.
var sensitiveParamFragments = []string{
	"email", "phone", "name", "address", "ssn", "credit", "card",
	"fingerprint", "canvas", "webgl", "screen", "timezone", "browser",
	"device", "hardware", "user-agent", "fonts", "plugins", "language",
}

// bodyKeywords are fingerprint payload keywords looked for in the body text.
var bodyKeywords = []string{
	"canvas", "webgl", "screen", "timezone", "fonts", "plugins",
	"useragent", "language", "platform", "hardware", "audio",
	"battery", "devicememory", "connection", "geolocation",
}

// endpointKeywords are data-collection keywords looked for in the URL path.
var endpointKeywords = []string{
	"collect", "track", "analytics", "beacon", "pixel", "event",
	"fingerprint", "profile", "identity", "visitor", "session",
}

// ExfiltrationSignal describes why a single request looks like it carries
// sensitive or fingerprint-derived data off the page.
type ExfiltrationSignal struct {
	// DataTypes are the indicator tags in detection order.
	DataTypes []string

	// Severity is the highest severity reached while evaluating the request.
	Severity model.Severity

	// Size is the estimated body size in bytes, 0 without a body.
	Size int
}

// AnalyzeExfiltration inspects the query string, body and path of a request.
// It returns false when no indicator fired. Severity starts at LOW and only
// escalates during one evaluation.
func AnalyzeExfiltration(u *url.URL, body *event.Body) (ExfiltrationSignal, bool) {
	if u == nil {
		return ExfiltrationSignal{}, false
	}

	signal := ExfiltrationSignal{Severity: model.SeverityLow}

	if u.RawQuery != "" {
		query := strings.ToLower(u.Query().Encode())
		for _, fragment := range sensitiveParamFragments {
			if strings.Contains(query, fragment) {
				signal.DataTypes = append(signal.DataTypes, PrefixURLParam+fragment)
				signal.Severity = model.MaxSeverity(signal.Severity, model.SeverityMedium)
			}
		}
	}

	if text := BodyText(body); text != "" {
		text = strings.ToLower(text)
		for _, keyword := range bodyKeywords {
			if strings.Contains(text, keyword) {
				signal.DataTypes = append(signal.DataTypes, PrefixBody+keyword)
				signal.Severity = model.MaxSeverity(signal.Severity, model.SeverityHigh)
			}
		}
	}

	path := strings.ToLower(u.Path)
	for _, keyword := range endpointKeywords {
		if strings.Contains(path, keyword) {
			signal.DataTypes = append(signal.DataTypes, PrefixEndpoint+keyword)
			signal.Severity = model.MaxSeverity(signal.Severity, model.SeverityMedium)
		}
	}

	signal.Size = EstimatePayloadSize(body)
	if signal.Size > LargePayloadBytes {
		signal.DataTypes = append(signal.DataTypes, IndicatorLargePayload)
		signal.Severity = model.MaxSeverity(signal.Severity, model.SeverityHigh)
	}

	if len(signal.DataTypes) == 0 {
		return ExfiltrationSignal{}, false
	}
	return signal, true
}

// BodyText returns a bounded textual rendering of body: the JSON encoding of
// its form fields, or its raw text, cut to MaxBodyScanBytes.
func BodyText(body *event.Body) string {
	if body == nil {
		return ""
	}
	var text string
	if body.FormData != nil {
		encoded, err := json.Marshal(body.FormData)
		if err != nil {
			return ""
		}
		text = string(encoded)
	} else {
		text = body.Raw
	}
	if len(text) > MaxBodyScanBytes {
		text = text[:MaxBodyScanBytes]
	}
	return text
}

// EstimatePayloadSize returns the size recorded when the body was decoded,
// falling back to the length of its form encoding or raw text.
func EstimatePayloadSize(body *event.Body) int {
	if body == nil {
		return 0
	}
	if body.Size > 0 {
		return body.Size
	}
	if body.FormData != nil {
		encoded, err := json.Marshal(body.FormData)
		if err != nil {
			return 0
		}
		return len(encoded)
	}
	return len(body.Raw)
}
