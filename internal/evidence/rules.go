package evidence

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

type catalog struct {
	items   []Item
	urls    []string
	fetched map[string]struct{}
}

func (c *catalog) add(claim, proofType string, sources, snippets []string, confidence float64) {
	c.items = append(c.items, Item{
		Claim:      truncate(claim, 240),
		ProofType:  proofType,
		SourceURLs: capList(dedupe(c.fetchedOnly(sources)), 3),
		Snippets:   truncateAll(capList(dedupe(snippets), 3), 260),
		Confidence: min(1, max(0, confidence)),
	})
}

// fetchedOnly drops URLs that were not fetched, falling back to the first
// fetched page so a claim is never left without a source when one exists.
func (c *catalog) fetchedOnly(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := c.fetched[u]; ok {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return c.first(1)
	}
	return out
}

func (c *catalog) first(n int) []string {
	return capList(c.urls, n)
}

func (c *catalog) matching(keywords ...string) []string {
	var out []string
	for _, u := range c.urls {
		if containsAny(strings.ToLower(u), keywords) {
			out = append(out, u)
		}
	}
	return out
}

func truncateAll(items []string, n int) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = truncate(s, n)
	}
	return out
}

// buildItems applies the fixed rule set. Each rule contributes exactly one
// item, so the catalog stays well under MaxItems.
func buildItems(blocks []PageBlock, profile CompanyProfile, locale string) []Item {
	c := &catalog{fetched: map[string]struct{}{}}
	for _, b := range blocks {
		c.urls = append(c.urls, b.URL)
		c.fetched[b.URL] = struct{}{}
	}

	pricingRule(c, blocks, profile)
	contactRule(c, blocks, profile)
	entityRule(c, blocks)
	languageRule(c, profile, locale)
	servicesRule(c, profile)

	return c.items[:min(len(c.items), MaxItems)]
}

func pricingRule(c *catalog, blocks []PageBlock, profile CompanyProfile) {
	pricingURLs := c.matching("pricing", "prices", "price", "plans")
	var snips []string
	for _, b := range blocks {
		snips = append(snips, b.Signals.PricingSnippets...)
	}
	if len(pricingURLs) == 0 && len(snips) == 0 {
		c.add("No pricing page or pricing section was detected in the sampled pages.",
			ProofNoPricing, capList(profile.TopPages, 3), []string{NotDetected}, 0.65)
		return
	}
	sources, confidence := pricingURLs, 0.75
	if len(pricingURLs) == 0 {
		sources, confidence = c.first(1), 0.55
	}
	c.add("Pricing information is detectable, but may not be structured for AI quoting.",
		ProofPricingPresent, capList(sources, 3), capList(snips, 2), confidence)
}

func contactRule(c *catalog, blocks []PageBlock, profile CompanyProfile) {
	contactURLs := c.matching("contact")
	var emails, phones, snips []string
	for _, b := range blocks {
		emails = append(emails, b.Signals.Emails...)
		phones = append(phones, b.Signals.Phones...)
		snips = append(snips, b.Signals.ContactSnippets...)
	}
	if len(contactURLs) == 0 && len(emails) == 0 && len(phones) == 0 && len(snips) == 0 {
		c.add("No clear contact page, email, or phone was detected in the sampled pages.",
			ProofNoContact, capList(profile.TopPages, 3), []string{NotDetected}, 0.65)
		return
	}
	sources, confidence := capList(contactURLs, 2), 0.8
	if len(contactURLs) == 0 {
		sources, confidence = c.first(2), 0.6
	}
	details := append(append(append([]string{}, emails...), phones...), snips...)
	c.add("Contact details exist, but must be presented in a consistent, AI-quotable block.",
		ProofContactPresent, sources, capList(dedupe(details), 2), confidence)
}

func entityRule(c *catalog, blocks []PageBlock) {
	var types []string
	for _, b := range blocks {
		types = append(types, b.StructuredDataTypes...)
	}
	types = dedupe(types)
	listed := NotDetected
	if len(types) > 0 {
		listed = strings.Join(capList(types, 6), ", ")
	}
	snippet := "structured_data_types: " + listed

	for _, t := range types {
		if isOrgType(t) {
			c.add("Entity signals are present in structured data (Organization/LocalBusiness).",
				ProofEntitySignalsPresent, c.first(2), []string{snippet}, 0.8)
			return
		}
	}
	c.add("No Organization/LocalBusiness structured data was detected in sampled pages.",
		ProofWeakEntitySignals, c.first(2), []string{snippet}, 0.6)
}

func languageRule(c *catalog, profile CompanyProfile, locale string) {
	snippet := "html_lang_detected: " + profile.PrimaryLanguage
	requested := baseLanguage(locale)
	detected := baseLanguage(profile.PrimaryLanguage)
	switch {
	case requested == "":
		c.add("No locale was requested, so the site language was not compared against one.",
			ProofLanguageNotDetected, c.first(2), []string{snippet}, 0.3)
	case detected == "":
		c.add(fmt.Sprintf("No declared page language was detected to compare with the requested locale (%s).", strings.TrimSpace(locale)),
			ProofLanguageNotDetected, c.first(2), []string{snippet}, 0.4)
	case detected != requested:
		c.add(fmt.Sprintf("Primary language on the site appears to differ from the requested locale (%s).", strings.TrimSpace(locale)),
			ProofLanguageMismatch, c.first(2), []string{snippet}, 0.7)
	default:
		c.add(fmt.Sprintf("Declared site language matches the requested locale (%s).", strings.TrimSpace(locale)),
			ProofLanguageMatch, c.first(2), []string{snippet}, 0.6)
	}
}

func servicesRule(c *catalog, profile CompanyProfile) {
	if len(profile.Services) == 0 {
		c.add("No distinct service names were detected in homepage or service page headings.",
			ProofServicesNotDetected, c.first(2), []string{"services_detected: " + NotDetected}, 0.35)
		return
	}
	snippet := "services_detected: " + strings.Join(capList(profile.Services, 5), ", ")
	serviceURLs := c.matching("service")
	if len(serviceURLs) == 0 {
		c.add("Service information appears present, but not organized into dedicated service explanation pages.",
			ProofFragmentedContent, c.first(3), []string{snippet}, 0.6)
		return
	}
	c.add("Services are detected and dedicated service pages exist.",
		ProofServicesStructured, capList(serviceURLs, 3), []string{snippet}, 0.6)
}

// baseLanguage reduces a BCP 47 tag such as "en-US" to its base language,
// or "" when the tag is blank or the sentinel.
func baseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, NotDetected) {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		head, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
		return strings.ToLower(head)
	}
	base, _ := parsed.Base()
	return base.String()
}
