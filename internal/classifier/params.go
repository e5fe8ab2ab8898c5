package classifier

import "net/url"

// trackingParams are query parameter names used for campaign and click attribution.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"gclid", "fbclid", "mc_cid", "mc_eid", "_ga", "_gid", "msclkid",
	"ttclid", "twclid", "li_source", "trk", "ref", "referrer",
}

// HasTrackingParameters reports whether the query string of u carries any
// known tracking parameter name. A nil URL has none.
func HasTrackingParameters(u *url.URL) bool {
	return len(TrackingParameters(u)) > 0
}

// TrackingParameters returns the tracking parameter names present in u, in list order.
func TrackingParameters(u *url.URL) []string {
	if u == nil || u.RawQuery == "" {
		return nil
	}
	query := u.Query()
	var found []string
	for _, param := range trackingParams {
		if query.Has(param) {
			found = append(found, param)
		}
	}
	return found
}
