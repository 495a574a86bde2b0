package crawler

import (
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var loopbackAliases = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

// SafetyGate rejects URLs that must never be fetched: non-http(s) schemes,
// loopback/link-local/private hosts and operator-blocked hosts.
type SafetyGate struct {
	blocked *domainPatternBlocklist
}

// NewSafetyGate builds a gate with extra blocked host patterns ("host" or "*.suffix").
func NewSafetyGate(blockedHosts []string) *SafetyGate {
	return &SafetyGate{blocked: newDomainPatternBlocklist(blockedHosts)}
}

// Check returns a *SafetyError when rawURL may not be fetched.
func (g *SafetyGate) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &SafetyError{URL: rawURL, Reason: "unparseable url"}
	}
	return g.CheckURL(u)
}

// CheckURL is Check for an already parsed URL; it is used on every redirect hop.
func (g *SafetyGate) CheckURL(u *url.URL) error {
	raw := u.String()
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &SafetyError{URL: raw, Reason: "scheme must be http or https"}
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return &SafetyError{URL: raw, Reason: "missing host"}
	}
	if _, ok := loopbackAliases[host]; ok {
		return &SafetyError{URL: raw, Reason: "loopback host"}
	}
	if g != nil && g.blocked.IsBlocked(host) {
		return &SafetyError{URL: raw, Reason: "host is blocklisted"}
	}
	if ip := net.ParseIP(host); ip != nil {
		addr, ok := netip.AddrFromSlice(ip)
		if ok {
			addr = addr.Unmap()
			for _, prefix := range privatePrefixes {
				if prefix.Contains(addr) {
					return &SafetyError{URL: raw, Reason: "private or loopback address " + prefix.String()}
				}
			}
		}
	}
	return nil
}
