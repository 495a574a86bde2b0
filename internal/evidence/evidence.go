// Package evidence derives deterministic, citable facts from fetched pages.
// Nothing here calls out to the network or invents values: anything that
// cannot be read from the stored markup is reported as NotDetected.
package evidence

import (
	"sort"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

// NotDetected is the sentinel for string facts that could not be extracted.
const NotDetected = "not detected"

// DefaultMaxPages bounds how many pages get a feature block.
const DefaultMaxPages = 15

// MaxItems caps the evidence catalog.
const MaxItems = 12

// Proof types emitted by the rule set.
const (
	ProofPricingPresent       = "pricing_present"
	ProofNoPricing            = "no_pricing"
	ProofContactPresent       = "contact_present"
	ProofNoContact            = "no_contact"
	ProofEntitySignalsPresent = "entity_signals_present"
	ProofWeakEntitySignals    = "weak_entity_signals"
	ProofLanguageMismatch     = "language_mismatch"
	ProofLanguageMatch        = "language_match"
	ProofLanguageNotDetected  = "language_not_detected"
	ProofFragmentedContent    = "fragmented_content"
	ProofServicesStructured   = "services_structured"
	ProofServicesNotDetected  = "services_not_detected"
)

// Layer is everything the extractor produces for one job.
type Layer struct {
	CompanyProfile CompanyProfile `json:"company_profile"`
	Pages          []PageBlock    `json:"pages"`
	Evidence       []Item         `json:"evidence"`
}

// CompanyProfile aggregates facts across pages. Every field is populated.
type CompanyProfile struct {
	CompanyName     string   `json:"company_name"`
	Offer           string   `json:"primary_offer_summary"`
	Services        []string `json:"services_detected"`
	Locations       []string `json:"locations_detected"`
	PrimaryLanguage string   `json:"primary_language_detected"`
	TopPages        []string `json:"top_pages"`
	Locale          string   `json:"locale"`
}

// PageBlock holds the features read from one page.
type PageBlock struct {
	URL                 string           `json:"url"`
	Title               string           `json:"title"`
	MetaDescription     string           `json:"meta_description"`
	TextExcerpt         string           `json:"text_excerpt"`
	Language            string           `json:"language"`
	H1                  string           `json:"h1"`
	Headings            []string         `json:"headings"`
	CTAs                []string         `json:"cta_detected"`
	StructuredDataTypes []string         `json:"structured_data_types"`
	JSONLD              []map[string]any `json:"jsonld"`
	InternalLinksTop    []string         `json:"internal_links_top"`
	Signals             Signals          `json:"signals"`
	Debug               PageDebug        `json:"debug"`

	orgName string
}

// Signals are keyword and pattern hits used by the evidence rules.
type Signals struct {
	PricingDetected bool     `json:"pricing_detected"`
	PricingSnippets []string `json:"pricing_snippets"`
	ContactDetected bool     `json:"contact_detected"`
	ContactSnippets []string `json:"contact_snippets"`
	Emails          []string `json:"emails_detected"`
	Phones          []string `json:"phones_detected"`
	Locations       []string `json:"locations_detected"`
}

// PageDebug carries counters that are useful for triage but not for citing.
type PageDebug struct {
	InternalLinksUnique int `json:"internal_links_unique"`
}

// Item is one cited claim. Source URLs always point at fetched pages.
type Item struct {
	Claim      string   `json:"claim"`
	ProofType  string   `json:"proof_type"`
	SourceURLs []string `json:"source_urls"`
	Snippets   []string `json:"snippets"`
	Confidence float64  `json:"confidence"`
}

// Extractor builds evidence layers.
type Extractor struct {
	maxPages int
}

// NewExtractor returns an extractor that reads at most maxPages pages.
func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{maxPages: maxPages}
}

// BuildLayer extracts page blocks, the company profile and the evidence
// catalog. The output depends only on the arguments.
func (e *Extractor) BuildLayer(pages []crawler.Page, fallbackDomain, locale string) Layer {
	blocks := make([]PageBlock, 0, min(len(pages), e.maxPages))
	for _, page := range selectPages(pages, e.maxPages) {
		blocks = append(blocks, extractPage(page))
	}
	profile := buildProfile(blocks, fallbackDomain, locale)
	return Layer{
		CompanyProfile: profile,
		Pages:          blocks,
		Evidence:       buildItems(blocks, profile, locale),
	}
}

// BuildLayer runs the default extractor.
func BuildLayer(pages []crawler.Page, fallbackDomain, locale string) Layer {
	return NewExtractor(DefaultMaxPages).BuildLayer(pages, fallbackDomain, locale)
}

// selectPages orders a copy by word count, then URL, and keeps the first n.
func selectPages(pages []crawler.Page, n int) []crawler.Page {
	sorted := append([]crawler.Page(nil), pages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].WordCount != sorted[j].WordCount {
			return sorted[i].WordCount > sorted[j].WordCount
		}
		return sorted[i].URL < sorted[j].URL
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
