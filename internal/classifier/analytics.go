package classifier

import (
	"regexp"
	"sort"
)

// AnalyticsID is an account identifier of an analytics or advertising
// service embedded in a page. The same ID on two sites links them to one
// operator.
type AnalyticsID struct {
	// Service names the pattern that matched, e.g. "google_tag_manager".
	Service string `json:"service"`
	ID      string `json:"id"`
}

// analyticsPatterns are matched against inline script text and script
// sources. A pattern with a capture group reports the group as the ID.
var analyticsPatterns = map[string]*regexp.Regexp{
	"google_analytics_ua":  regexp.MustCompile(`UA-\d{4,10}-\d{1,4}`),
	"google_analytics_ga4": regexp.MustCompile(`\bG-[A-Z0-9]{10,12}\b`),
	"google_tag_manager":   regexp.MustCompile(`GTM-[A-Z0-9]{6,8}`),
	"google_adsense":       regexp.MustCompile(`(?:ca-)?pub-(\d{16})`),
	"facebook_pixel":       regexp.MustCompile(`fbq\s*\(\s*['"]init['"]\s*,\s*['"](\d{15,16})['"]`),
	"yandex_metrica":       regexp.MustCompile(`ym\s*\(\s*(\d{8,9})`),
	"matomo":               regexp.MustCompile(`_paq\.push\s*\(\s*\[\s*['"]setSiteId['"]\s*,\s*['"]?(\d+)['"]?\s*\]`),
	"clarity":              regexp.MustCompile(`clarity\s*\(\s*['"]set['"]\s*,\s*['"]([a-z0-9]+)['"]`),
	"hotjar":               regexp.MustCompile(`hjid\s*:\s*(\d{6,7})`),
}

// analyticsServices is analyticsPatterns' keys in a fixed order so results
// are deterministic.
var analyticsServices = func() []string {
	names := make([]string, 0, len(analyticsPatterns))
	for name := range analyticsPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// FindAnalyticsIDs returns the distinct analytics IDs in text, at most limit.
func FindAnalyticsIDs(text string, limit int) []AnalyticsID {
	var found []AnalyticsID
	seen := make(map[AnalyticsID]bool)
	for _, service := range analyticsServices {
		for _, match := range analyticsPatterns[service].FindAllStringSubmatch(text, -1) {
			id := match[0]
			if len(match) > 1 && match[1] != "" {
				id = match[1]
			}
			key := AnalyticsID{Service: service, ID: id}
			if seen[key] {
				continue
			}
			if len(found) >= limit {
				return found
			}
			seen[key] = true
			found = append(found, key)
		}
	}
	return found
}
