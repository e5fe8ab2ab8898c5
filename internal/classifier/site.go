package classifier

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Site returns the registrable domain (eTLD+1) of host, used to group
// origins that belong to the same party. Hosts without a registrable domain,
// such as IP addresses or "localhost", are returned unchanged.
func Site(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// IsThirdParty reports whether host belongs to a different site than the
// page that initiated the request. An empty or unparseable initiator means
// the request cannot be attributed, and it is not treated as third-party.
func IsThirdParty(host, initiator string) bool {
	if host == "" || initiator == "" {
		return false
	}
	u, err := url.Parse(initiator)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return Site(host) != Site(u.Hostname())
}

// InitiatorSite returns the site of an initiator URL, or "" when it has no host.
func InitiatorSite(initiator string) string {
	u, err := url.Parse(initiator)
	if err != nil {
		return ""
	}
	return Site(u.Hostname())
}
