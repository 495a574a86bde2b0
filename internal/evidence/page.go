package evidence

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

var (
	ctaVocabulary = []string{
		"contact", "book", "schedule", "request", "get a quote", "get quote", "quote",
		"demo", "call", "buy", "pricing", "plans", "start", "sign up", "signup", "trial",
	}
	pricingNeedles = []string{"pricing", "price", "plans", "packages", "starting at", "$", "€", "£", "usd", "eur"}
	contactNeedles = []string{"contact", "call", "email", "phone", "address"}
	addressNeedles = []string{"address", "located", "location"}
	linkSkipPrefix = []string{"mailto:", "tel:", "javascript:", "#"}
	addressParts   = []string{"streetAddress", "addressLocality", "addressRegion", "postalCode", "addressCountry"}
)

const (
	maxJSONLD        = 30
	maxJSONLDKept    = 6
	maxNavLinks      = 15
	maxExportedLinks = 10
)

func extractPage(page crawler.Page) PageBlock {
	block := PageBlock{
		URL:                 page.URL,
		Title:               page.Title,
		MetaDescription:     page.MetaDescription,
		TextExcerpt:         truncate(page.Text, 1200),
		Language:            NotDetected,
		H1:                  NotDetected,
		Headings:            []string{},
		CTAs:                []string{},
		StructuredDataTypes: []string{},
		JSONLD:              []map[string]any{},
		InternalLinksTop:    []string{},
	}

	var (
		jsonlds   []map[string]any
		locations []string
	)
	if page.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML)); err == nil {
			if lang := strings.TrimSpace(doc.Find("html").AttrOr("lang", "")); lang != "" {
				block.Language = lang
			}
			jsonlds = extractJSONLD(doc)
			block.StructuredDataTypes = jsonldTypes(jsonlds)
			block.orgName = orgName(jsonlds)
			if h1 := nodeText(doc.Find("h1").First()); h1 != "" {
				block.H1 = h1
			}
			block.Headings = headings(doc)
			block.CTAs = ctas(doc)
			counts, navTop := internalLinks(doc, page.URL, page.Domain)
			block.InternalLinksTop = capList(navTop, maxExportedLinks)
			block.Debug.InternalLinksUnique = len(counts)
			locations = addresses(jsonlds)
		}
	}
	block.JSONLD = append(block.JSONLD, jsonlds[:min(len(jsonlds), maxJSONLDKept)]...)

	text := page.Text
	lower := strings.ToLower(text)
	pricing := snippetsAround(text, pricingNeedles, 2, 140)
	emails := capList(dedupe(emailRE.FindAllString(text, -1)), 3)
	phones := capList(dedupe(phoneRE.FindAllString(text, -1)), 3)
	contact := snippetsAround(text, contactNeedles, 2, 140)
	if len(locations) == 0 {
		locations = snippetsAround(text, addressNeedles, 1, 140)
	}

	pricingDetected := len(pricing) > 0 || (strings.Contains(lower, "pricing") && len(text) > 200)
	contactDetected := len(emails) > 0 || len(phones) > 0 || len(contact) > 0 ||
		strings.Contains(strings.ToLower(page.URL), "contact")

	block.Signals = Signals{
		PricingDetected: pricingDetected,
		PricingSnippets: pricing,
		ContactDetected: contactDetected,
		ContactSnippets: contact,
		Emails:          emails,
		Phones:          phones,
		Locations:       capList(locations, 5),
	}
	return block
}

// nodeText joins the text nodes under sel with single spaces.
func nodeText(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			collectText(n, &parts)
		}
	})
	return normWS(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func headings(doc *goquery.Document) []string {
	var out []string
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		if t := nodeText(s); t != "" {
			out = append(out, t)
		}
	})
	return capList(dedupe(out), 20)
}

func ctas(doc *goquery.Document) []string {
	var out []string
	doc.Find("a, button").Each(func(_ int, s *goquery.Selection) {
		t := nodeText(s)
		if n := runeLen(t); n < 2 || n > 64 {
			return
		}
		if containsAny(strings.ToLower(t), ctaVocabulary) {
			out = append(out, t)
		}
	})
	return capList(dedupe(out), 10)
}

// internalLinks counts same-domain anchors and ranks those inside nav or
// header elements by frequency, then URL.
func internalLinks(doc *goquery.Document, pageURL, domain string) (map[string]int, []string) {
	counts := map[string]int{}
	navCounts := map[string]int{}
	base, err := url.Parse(pageURL)
	if err != nil {
		return counts, []string{}
	}
	hosts := sameSiteHosts(domain, base.Host)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || hasAnyPrefix(strings.ToLower(href), linkSkipPrefix) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if _, ok := hosts[strings.ToLower(abs.Host)]; !ok {
			return
		}
		abs.Fragment = ""
		abs.RawFragment = ""
		key := abs.String()
		counts[key]++
		if s.Closest("nav, header").Length() > 0 {
			navCounts[key]++
		}
	})
	return counts, rankByCount(navCounts, maxNavLinks)
}

func sameSiteHosts(domain, pageHost string) map[string]struct{} {
	hosts := map[string]struct{}{strings.ToLower(pageHost): {}}
	if d := crawler.NormalizeDomain(domain); d != "" {
		hosts[d] = struct{}{}
		hosts["www."+d] = struct{}{}
	}
	return hosts
}

// rankByCount orders keys by descending count, then ascending key.
func rankByCount(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return capList(keys, limit)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func extractJSONLD(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(strings.ToLower(s.AttrOr("type", "")), "application/ld+json") {
			return
		}
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return
		}
		switch v := payload.(type) {
		case map[string]any:
			out = append(out, v)
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok {
					out = append(out, obj)
				}
			}
		}
	})
	return out[:min(len(out), maxJSONLD)]
}

func typeNames(obj map[string]any) []string {
	switch t := obj["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func jsonldTypes(objs []map[string]any) []string {
	var types []string
	for _, obj := range objs {
		types = append(types, typeNames(obj)...)
	}
	return capList(dedupe(types), 20)
}

func isOrgType(t string) bool {
	lt := strings.ToLower(t)
	return lt == "organization" || lt == "localbusiness"
}

func orgName(objs []map[string]any) string {
	for _, obj := range objs {
		org := false
		for _, t := range typeNames(obj) {
			if isOrgType(t) {
				org = true
				break
			}
		}
		if !org {
			continue
		}
		if name, ok := obj["name"].(string); ok && normWS(name) != "" {
			return normWS(name)
		}
	}
	return ""
}

func addresses(objs []map[string]any) []string {
	var out []string
	for _, obj := range objs {
		addr, ok := obj["address"].(map[string]any)
		if !ok {
			continue
		}
		var parts []string
		for _, k := range addressParts {
			if v, ok := addr[k].(string); ok && normWS(v) != "" {
				parts = append(parts, normWS(v))
			}
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, ", "))
		}
	}
	return capList(dedupe(out), 10)
}
