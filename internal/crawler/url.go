package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for deduplication: http is upgraded to
// https, the host is lowercased, trailing slashes are trimmed (an empty path
// becomes "/"), the query is kept and the fragment dropped.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if strings.EqualFold(u.Scheme, "http") {
		u.Scheme = "https"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// NormalizeDomain strips scheme, path and surrounding slashes from user input
// such as "https://Example.com/".
func NormalizeDomain(input string) string {
	d := strings.TrimSpace(input)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.Trim(d, "/")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// SameHost reports whether two URLs share a host (case-insensitive, port included).
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}

var (
	tierOneKeywords = []string{
		"about", "pricing", "price", "services", "products", "solutions",
		"case-stud", "portfolio", "customers", "testimonial", "reviews",
	}
	tierTwoKeywords = []string{
		"faq", "contact", "blog", "features", "resources", "how-it-works",
		"use-case", "industries", "team",
	}
)

// PriorityTier ranks a URL for crawl ordering: 0 homepage, 1 decision pages
// (about, pricing, services, case studies), 2 supporting pages (faq, contact,
// blog, features), 3 everything else.
func PriorityTier(rawURL string) int {
	lower := strings.ToLower(rawURL)
	if u, err := url.Parse(lower); err == nil {
		if strings.TrimRight(u.Path, "/") == "" {
			return 0
		}
	}
	for _, kw := range tierOneKeywords {
		if strings.Contains(lower, kw) {
			return 1
		}
	}
	for _, kw := range tierTwoKeywords {
		if strings.Contains(lower, kw) {
			return 2
		}
	}
	return 3
}

var linkSkipPatterns = []string{
	".pdf", ".jpg", ".png", ".gif", ".zip", ".exe",
	"javascript:", "mailto:", "tel:", "#",
}

// ResolveLink resolves href against base and returns the normalized link when
// it is a crawlable same-host http(s) URL.
func ResolveLink(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(abs.Host, base.Host) {
		return "", false
	}
	lower := strings.ToLower(abs.String())
	for _, pattern := range linkSkipPatterns {
		if strings.Contains(lower, pattern) {
			return "", false
		}
	}
	normalized, err := NormalizeURL(abs.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}
