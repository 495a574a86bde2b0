package evidence

import (
	"net/url"
	"strings"
)

var (
	genericHeadings = map[string]struct{}{
		"home": {}, "welcome": {}, "about": {}, "services": {}, "products": {}, "solutions": {}, "contact": {},
	}
	offerBoilerplate = []string{"cookie", "privacy", "terms", "subscribe", "newsletter", "copyright"}
	offerVerbs       = []string{"we ", "our ", "provid", "offer", "help", "build", "deliver", "service", "solution", "product"}
)

func isHome(rawURL string) bool {
	u, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return false
	}
	return strings.TrimRight(u.Path, "/") == ""
}

// homeFirst returns the blocks with homepages moved to the front, keeping
// relative order otherwise.
func homeFirst(blocks []PageBlock) []PageBlock {
	out := make([]PageBlock, 0, len(blocks))
	var rest []PageBlock
	for _, b := range blocks {
		if isHome(b.URL) {
			out = append(out, b)
		} else {
			rest = append(rest, b)
		}
	}
	return append(out, rest...)
}

func buildProfile(blocks []PageBlock, fallbackDomain, locale string) CompanyProfile {
	profile := CompanyProfile{
		CompanyName:     strings.TrimSpace(fallbackDomain),
		Offer:           NotDetected,
		Services:        services(blocks),
		Locations:       []string{},
		PrimaryLanguage: NotDetected,
		TopPages:        topPages(blocks),
		Locale:          NotDetected,
	}
	if profile.CompanyName == "" {
		profile.CompanyName = "this domain"
	}
	if l := strings.TrimSpace(locale); l != "" {
		profile.Locale = l
	}

	for _, b := range blocks {
		if b.Language != "" && !strings.EqualFold(b.Language, NotDetected) {
			profile.PrimaryLanguage = b.Language
			break
		}
	}

	for _, b := range homeFirst(blocks) {
		if b.orgName != "" {
			profile.CompanyName = b.orgName
			break
		}
	}

	var locations []string
	for _, b := range blocks {
		locations = append(locations, b.Signals.Locations...)
	}
	profile.Locations = capList(dedupe(locations), 10)

	for _, b := range blocks {
		if !isHome(b.URL) {
			continue
		}
		if offer := bestOfferSentences(b.TextExcerpt); offer != "" {
			profile.Offer = offer
			break
		}
	}
	if profile.Offer == NotDetected {
		for _, b := range homeFirst(blocks) {
			if runeLen(normWS(b.MetaDescription)) >= 60 {
				profile.Offer = truncate(b.MetaDescription, 260)
				break
			}
		}
	}
	return profile
}

// services collects heading candidates from the homepage and service-like
// pages, minus generic navigation labels.
func services(blocks []PageBlock) []string {
	var out []string
	for _, b := range blocks {
		lu := strings.ToLower(b.URL)
		serviceLike := strings.Contains(lu, "service") || strings.Contains(strings.ToLower(b.Title), "services")
		if !isHome(b.URL) && !serviceLike {
			continue
		}
		candidates := make([]string, 0, len(b.Headings)+1)
		if b.H1 != "" && !strings.EqualFold(b.H1, NotDetected) {
			candidates = append(candidates, b.H1)
		}
		candidates = append(candidates, b.Headings...)
		for _, c := range candidates {
			t := normWS(c)
			if n := runeLen(t); n < 3 || n > 80 {
				continue
			}
			if _, generic := genericHeadings[strings.ToLower(t)]; generic {
				continue
			}
			out = append(out, t)
		}
	}
	return capList(dedupe(out), 12)
}

// topPages ranks URLs by how many pages list them among their top nav links.
func topPages(blocks []PageBlock) []string {
	counts := map[string]int{}
	for _, b := range blocks {
		for _, u := range b.InternalLinksTop {
			if u != "" {
				counts[u]++
			}
		}
	}
	return rankByCount(counts, 10)
}
