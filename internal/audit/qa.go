package audit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

const (
	defaultNeutrality = "This audit is platform-agnostic. Any capable team can implement it."
	defaultOffer      = "If you want fast implementation without trial-and-error, we can deliver Wave 1 in a fixed scope " +
		"with predictable cost. US-first GEO architecture, built for LLM quoting."
	defaultService      = "your core service"
	maxPersonalizedText = 260
)

var (
	hedgePhraseRE = regexp.MustCompile(`(?i)\b(might be|may be|could be)\b`)
	hedgeWordRE   = regexp.MustCompile(`(?i)\b(might|may|could|maybe|likely|potentially)\b\s*`)
	doubleSpaceRE = regexp.MustCompile(` {2,}`)
	cheapRE       = regexp.MustCompile(`(?i)\bcheap\b`)
)

// QA applies the final wording rules: hedges are removed, stage 2 advice is
// tied to a named service, and the closing blocks get their defaults. A
// panic inside a rule is returned as an error with the input untouched.
func QA(doc Document, profile evidence.CompanyProfile) (out Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = doc, fmt.Errorf("qa gate: %v", r)
		}
	}()

	out = doc
	out.Stage2Reasons = append([]Stage2Reason(nil), doc.Stage2Reasons...)
	out.Stage3Needs = append([]Stage3Need(nil), doc.Stage3Needs...)

	topService := defaultService
	if len(profile.Services) > 0 && strings.TrimSpace(profile.Services[0]) != "" {
		topService = profile.Services[0]
	}
	company := profile.CompanyName
	anchors := append([]string{company}, capSlice(append([]string(nil), profile.Services...), 3)...)

	for i := range out.Stage2Reasons {
		r := &out.Stage2Reasons[i]
		r.HowLLMsDecide = dehedge(r.HowLLMsDecide)
		r.WhatWeFoundOnYourSite = dehedge(r.WhatWeFoundOnYourSite)
		r.WhatAIDoesInstead = dehedge(r.WhatAIDoesInstead)
		r.WhatMustBeBuilt = dehedge(r.WhatMustBeBuilt)

		// Personalization looks at the generated text only, before advice
		// templated from the profile is added.
		blob := strings.ToLower(r.HowLLMsDecide + " " + r.WhatWeFoundOnYourSite + " " + r.WhatAIDoesInstead + " " + r.WhatMustBeBuilt)
		r.WhatMustBeBuilt = buildAdvice(r.WhatMustBeBuilt, topService)
		if !mentionsAny(blob, anchors) && company != "" {
			found := strings.TrimSpace(r.WhatWeFoundOnYourSite)
			if found == "" {
				found = "Not detected in the crawl."
			}
			r.WhatWeFoundOnYourSite = clip(fmt.Sprintf("%s: %s coverage is not structured for AI quoting. %s",
				company, topService, found), maxPersonalizedText)
		}
	}

	for i := range out.Stage3Needs {
		n := &out.Stage3Needs[i]
		n.WhatItUnlocks = dehedge(n.WhatItUnlocks)
		n.Impact = dehedge(n.Impact)
		n.WhatWeSaw = dehedge(n.WhatWeSaw)
	}

	impact := &out.Stage5BusinessImpact
	if strings.TrimSpace(impact.NeutralityBlock) == "" {
		impact.NeutralityBlock = defaultNeutrality
	}
	if strings.TrimSpace(impact.OurOfferBlock) == "" {
		impact.OurOfferBlock = defaultOffer
	}
	impact.WhatStayingInvisibleCosts = cheapRE.ReplaceAllString(impact.WhatStayingInvisibleCosts, "cost-effective")
	impact.WhyWaitingMakesThisWorse = cheapRE.ReplaceAllString(impact.WhyWaitingMakesThisWorse, "cost-effective")
	impact.NeutralityBlock = cheapRE.ReplaceAllString(impact.NeutralityBlock, "cost-effective")
	impact.OurOfferBlock = cheapRE.ReplaceAllString(impact.OurOfferBlock, "cost-effective")
	impact.ClosingLine = closingLine(cheapRE.ReplaceAllString(impact.ClosingLine, "cost-effective"))
	return out, nil
}

// dehedge turns "may be" into "is" and drops standalone hedging words.
func dehedge(s string) string {
	if s == "" {
		return s
	}
	s = hedgePhraseRE.ReplaceAllString(s, "is")
	s = hedgeWordRE.ReplaceAllString(s, "")
	return strings.TrimSpace(doubleSpaceRE.ReplaceAllString(s, " "))
}

func buildAdvice(advice, service string) string {
	advice = strings.TrimSpace(advice)
	if advice == "" {
		return fmt.Sprintf("Build: %q + %q + a structured FAQ block.", "How "+service+" Works", service+" Pricing & Packages")
	}
	if strings.Contains(advice, "How ") || strings.Contains(advice, "Pricing") || strings.Contains(advice, service) {
		return advice
	}
	return strings.TrimRight(advice, ".") + fmt.Sprintf(". Example: %q.", "How "+service+" Works")
}

func mentionsAny(blob string, anchors []string) bool {
	for _, a := range anchors {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && strings.Contains(blob, a) {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}
