package classifier

import "strings"

// trackingCookieFragments are matched case-insensitively as substrings of cookie names.
var trackingCookieFragments = []string{
	"_ga", "_gid", "_gat", "__utma", "__utmb", "__utmc", "__utmz",
	"fbp", "fbc", "_fbp", "fr", "datr", "sb", "c_user",
	"id", "uuid", "visitor_id", "session_id", "tracking_id",
}

// Cookie is one name/value pair of a cookie header, attributes included.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookieHeader splits a Set-Cookie (or Cookie) header value on ";",
// trims each part and splits it on the first "=". Attributes such as Path
// appear as ordinary pairs. Empty parts are skipped.
func ParseCookieHeader(header string) []Cookie {
	var cookies []Cookie
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		cookies = append(cookies, Cookie{Name: name, Value: value})
	}
	return cookies
}

// ClassifyCookie reports whether any cookie name contains a tracking cookie fragment.
func ClassifyCookie(cookies []Cookie) bool {
	for _, c := range cookies {
		name := strings.ToLower(c.Name)
		if name == "" {
			continue
		}
		for _, fragment := range trackingCookieFragments {
			if strings.Contains(name, fragment) {
				return true
			}
		}
	}
	return false
}
