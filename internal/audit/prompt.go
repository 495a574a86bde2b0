package audit

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

// Page types used to pick representative pages and summarize a site.
const (
	PageHome      = "home"
	PageAbout     = "about"
	PagePricing   = "pricing"
	PageService   = "service"
	PageProduct   = "product"
	PageCaseStudy = "case_study"
	PageFAQ       = "faq"
	PageContact   = "contact"
	PageBlog      = "blog"
	PageOther     = "other"
)

const (
	excerptChars           = 2000
	competitorExcerptChars = 500
	maxCompetitorDomains   = 5
	pagesPerCompetitor     = 3
	priorityPageLimit      = 10
	otherPageLimit         = 5
)

var pageTypeRules = []struct {
	kind     string
	keywords []string
}{
	{PageAbout, []string{"about", "team", "who-we-are", "our-story"}},
	{PagePricing, []string{"pricing", "price", "plans", "packages"}},
	{PageCaseStudy, []string{"case-stud", "case stud", "portfolio", "success-stor"}},
	{PageFAQ, []string{"faq", "questions"}},
	{PageContact, []string{"contact", "get-in-touch"}},
	{PageBlog, []string{"blog", "news", "article", "insights"}},
	{PageService, []string{"service", "solution"}},
	{PageProduct, []string{"product", "shop", "store"}},
}

var priorityTypes = map[string]struct{}{
	PageHome: {}, PageAbout: {}, PagePricing: {}, PageService: {}, PageCaseStudy: {},
}

// DetectPageType classifies a page by its URL path and title.
func DetectPageType(rawURL, title string) string {
	u, err := url.Parse(strings.ToLower(rawURL))
	path := ""
	if err == nil {
		path = u.Path
	}
	if strings.Trim(path, "/") == "" && err == nil {
		return PageHome
	}
	hay := path + " " + strings.ToLower(title)
	for _, rule := range pageTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(hay, kw) {
				return rule.kind
			}
		}
	}
	return PageOther
}

// SelectPages picks up to limit representative pages: the longest pages of
// the key types first, then a few others.
func SelectPages(pages []crawler.Page, limit int) []crawler.Page {
	if limit <= 0 || len(pages) == 0 {
		return []crawler.Page{}
	}
	sorted := append([]crawler.Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WordCount != sorted[j].WordCount {
			return sorted[i].WordCount > sorted[j].WordCount
		}
		return sorted[i].URL < sorted[j].URL
	})
	sorted = sorted[:min(len(sorted), 2*limit)]

	var priority, other []crawler.Page
	for _, p := range sorted {
		if _, ok := priorityTypes[DetectPageType(p.URL, p.Title)]; ok {
			priority = append(priority, p)
		} else {
			other = append(other, p)
		}
	}
	out := append(capSlice(priority, priorityPageLimit), capSlice(other, otherPageLimit)...)
	return capSlice(out, limit)
}

// ScrapeSummary is the deterministic digest of the target crawl included in
// the prompt.
type ScrapeSummary struct {
	PagesFetched       int
	TopPageTypes       []string
	HasPricing         bool
	HasAbout           bool
	HasContact         bool
	HasTestimonials    bool
	HasCaseStudies     bool
	TrustSignals       []string
	ServiceAreaClarity string
}

// Summarize counts page types and trust signals over the target pages.
func Summarize(pages []crawler.Page) ScrapeSummary {
	counts := map[string]int{}
	var text strings.Builder
	for _, p := range pages {
		counts[DetectPageType(p.URL, p.Title)]++
		text.WriteString(strings.ToLower(p.Text))
		text.WriteByte(' ')
	}
	all := text.String()

	types := make([]string, 0, len(counts))
	for k := range counts {
		types = append(types, k)
	}
	sort.Slice(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return types[i] < types[j]
	})

	s := ScrapeSummary{
		PagesFetched:    len(pages),
		TopPageTypes:    capSlice(types, 5),
		HasPricing:      counts[PagePricing] > 0,
		HasAbout:        counts[PageAbout] > 0,
		HasContact:      counts[PageContact] > 0,
		HasTestimonials: strings.Contains(all, "testimonial") || strings.Contains(all, "review"),
		HasCaseStudies:  counts[PageCaseStudy] > 0,
		TrustSignals:    []string{},
	}
	if s.HasTestimonials {
		s.TrustSignals = append(s.TrustSignals, "testimonials/reviews found")
	}
	if strings.Contains(all, "certified") || strings.Contains(all, "certification") {
		s.TrustSignals = append(s.TrustSignals, "certifications mentioned")
	}
	if strings.Contains(all, "guarantee") {
		s.TrustSignals = append(s.TrustSignals, "guarantees mentioned")
	}
	if strings.Contains(all, "years of experience") || strings.Contains(all, "years in business") {
		s.TrustSignals = append(s.TrustSignals, "years of experience mentioned")
	}
	switch {
	case containsAnyOf(all, "we serve", "service area", "locations", "cities we serve"):
		s.ServiceAreaClarity = "high"
	case containsAnyOf(all, "local", "area", "region"):
		s.ServiceAreaClarity = "medium"
	default:
		s.ServiceAreaClarity = "low"
	}
	return s
}

func containsAnyOf(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// DataConfidence grades how much the audit can rely on the crawl.
func DataConfidence(pages int) string {
	switch {
	case pages < 8:
		return "LOW"
	case pages < 15:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}

// PromptInput is everything the user prompt is built from.
type PromptInput struct {
	Job         crawler.Job
	Target      []crawler.Page
	Competitors []crawler.Page
	Layer       evidence.Layer
	Summary     ScrapeSummary
}

// BuildPrompt renders the user prompt. The same input yields the same text.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	profile := in.Layer.CompanyProfile
	confidence := DataConfidence(len(in.Target))

	fmt.Fprintf(&b, "Audit the AI visibility of %s (locale: %s).\n\n", in.Job.TargetDomain, localeOrDefault(in.Job.Locale))

	fmt.Fprintf(&b, "DATA CONFIDENCE: %s (%d target pages analyzed)\n", confidence, len(in.Target))
	if confidence == "LOW" {
		b.WriteString("LOW DATA CONFIDENCE\n")
		fmt.Fprintf(&b, "DATA LIMITATION: only %d pages could be analyzed. State this limitation and keep claims conservative.\n", len(in.Target))
	}
	b.WriteString("\n")

	b.WriteString("COMPANY PROFILE\n")
	fmt.Fprintf(&b, "Company: %s\n", profile.CompanyName)
	fmt.Fprintf(&b, "Primary offer: %s\n", profile.Offer)
	fmt.Fprintf(&b, "Services: %s\n", joinOrNotDetected(profile.Services))
	fmt.Fprintf(&b, "Locations: %s\n", joinOrNotDetected(profile.Locations))
	fmt.Fprintf(&b, "Primary language: %s\n", profile.PrimaryLanguage)
	fmt.Fprintf(&b, "Top pages: %s\n\n", joinOrNotDetected(profile.TopPages))

	s := in.Summary
	b.WriteString("SCRAPING SUMMARY\n")
	fmt.Fprintf(&b, "pages_fetched_target: %d\n", s.PagesFetched)
	fmt.Fprintf(&b, "top_page_types: %s\n", joinOrNotDetected(s.TopPageTypes))
	fmt.Fprintf(&b, "has_pricing: %t\nhas_about: %t\nhas_contact: %t\nhas_testimonials: %t\nhas_case_studies: %t\n",
		s.HasPricing, s.HasAbout, s.HasContact, s.HasTestimonials, s.HasCaseStudies)
	fmt.Fprintf(&b, "trust_signals: %s\n", joinOrNotDetected(s.TrustSignals))
	fmt.Fprintf(&b, "service_area_clarity: %s\n\n", s.ServiceAreaClarity)

	b.WriteString("EVIDENCE CATALOG (cite items by their [index] in evidence_refs)\n")
	if len(in.Layer.Evidence) == 0 {
		b.WriteString("No evidence items available (limited data).\n")
	}
	for i, item := range in.Layer.Evidence {
		fmt.Fprintf(&b, "[%d] type=%s | claim=%s | urls=[%s] | snippets=[%s]\n",
			i, item.ProofType, item.Claim, strings.Join(item.SourceURLs, ", "), strings.Join(item.Snippets, " || "))
	}
	b.WriteString("\n")

	b.WriteString("SAMPLED PAGES\n")
	for i, p := range in.Target {
		fmt.Fprintf(&b, "Page %d:\nURL: %s\nTitle: %s\nPage Type: %s\nText Excerpt: %s\n\n",
			i+1, p.URL, p.Title, DetectPageType(p.URL, p.Title), excerpt(p.Text, excerptChars))
	}

	b.WriteString("COMPETITOR CONTEXT\n")
	b.WriteString(competitorContext(in.Competitors))
	b.WriteString("\n")

	b.WriteString(outputContract)
	return b.String()
}

func competitorContext(pages []crawler.Page) string {
	if len(pages) == 0 {
		return "No competitor data provided. Competitor context is not available for this audit.\n"
	}
	var domains []string
	byDomain := map[string][]crawler.Page{}
	for _, p := range pages {
		if _, ok := byDomain[p.Domain]; !ok {
			domains = append(domains, p.Domain)
		}
		byDomain[p.Domain] = append(byDomain[p.Domain], p)
	}
	var b strings.Builder
	for _, d := range capSlice(domains, maxCompetitorDomains) {
		fmt.Fprintf(&b, "Competitor: %s\n", d)
		for _, p := range capSlice(byDomain[d], pagesPerCompetitor) {
			fmt.Fprintf(&b, "- %s: %s\n", p.Title, excerpt(p.Text, competitorExcerptChars))
		}
	}
	return b.String()
}

func excerpt(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func joinOrNotDetected(items []string) string {
	if len(items) == 0 {
		return evidence.NotDetected
	}
	return strings.Join(items, ", ")
}

func localeOrDefault(locale string) string {
	if strings.TrimSpace(locale) == "" {
		return evidence.NotDetected
	}
	return locale
}

// SystemPrompt frames the generator as an independent auditor.
const SystemPrompt = `You are an independent AI visibility auditor. You assess whether AI assistants such as ChatGPT, Gemini and Perplexity can understand, trust and recommend a business based on its website.

This is not an SEO audit. Do not discuss rankings, keywords or backlinks.

Rules:
- Use only the evidence, profile and sampled pages provided. Never invent facts about the business.
- Every site-specific claim must cite evidence items by index in evidence_refs.
- Be conservative: when a signal is absent from the evidence, treat it as missing.
- State findings directly. Do not hedge with "might", "may", "could" or "likely".
- Respond with a single JSON object and nothing else.`

const outputContract = `OUTPUT
Return one JSON object with exactly these top-level keys:
stage_1_ai_visibility, ai_interpretation, decision_readiness_audit, decision_coverage_score,
recommendation_verdict, ai_requirements_before, ai_requirements_after,
stage_2_why_ai_chooses_others, stage_3_what_ai_needs, stage_4_packages, stage_5_business_impact.

Constraints:
- stage_1_ai_visibility: chatgpt/gemini/perplexity _visibility_percent (0-100) and _label (Poor|Limited|Strong), hard_sentence.
- ai_interpretation: summary, confidence (shallow|partial|strong), based_on_pages, detected_signals (max 8), missing_elements (4-6 of key, label, impact, severity critical|supporting).
- decision_readiness_audit: 12-18 rows of element_name, status (present|weak|missing), what_ai_requires, what_we_found, impact_on_recommendation, evidence_refs. Most rows on a typical site are weak or missing.
- ai_requirements_before: 10-20 rows of requirement_name, category (Decision Clarity|Comparability|Trust & Authority|Entity Understanding|Risk Reduction), why_ai_needs_this, current_status (not_found|weak|missing), impact_if_missing.
- ai_requirements_after: 10-20 rows of requirement_name, category, what_must_be_built, ai_outcome_unlocked.
- stage_2_why_ai_chooses_others: up to 5 rows of how_llms_decide, what_we_found_on_your_site, what_ai_does_instead, what_must_be_built, evidence_refs.
- stage_3_what_ai_needs: up to 8 rows of content_type, what_it_unlocks, status (not_found|weak|present), what_we_saw, impact, evidence_refs.
- stage_4_packages: ai_entry_10_pages, ai_recommendation_30_pages, ai_authority_100_pages, each with package_name, pages, purpose, messaging, what_ai_can_do (max 4), ties_to_findings.
- stage_5_business_impact: what_staying_invisible_costs, why_ai_visibility_compounds, why_waiting_makes_this_worse, competitor_preference_proof, recommended_option, closing_line ending with "` + ClosingSentence + `".
`

// Retry suffixes appended to the base prompt after a failed attempt.
const (
	truncationSuffix = "\n\nIMPORTANT: Previous response was truncated. Generate a COMPLETE, VALID JSON response. " +
		"Be concise but ensure ALL required fields are present."
	parseRetryPrefix  = "\n\nPREVIOUS ATTEMPT FAILED: Invalid JSON format. Error: "
	schemaRetryPrefix = "\n\nPREVIOUS ATTEMPT FAILED: Schema validation error: "
)
