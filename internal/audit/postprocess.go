package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

// Facts is everything post-processing may rely on besides the generated
// document itself. None of it comes from the generator.
type Facts struct {
	Layer           evidence.Layer
	SampledURLs     []string
	TargetPages     int
	CompetitorPages int
	ScrapedAt       time.Time
}

// Package tiers, by page count.
var packageTiers = []struct {
	name  string
	pages int
}{
	{"AI Entry Package", 10},
	{"AI Recommendation Package", 30},
	{"AI Authority Package", 100},
}

// PostProcess normalizes enumerations, pads short sections from the
// fallback tables, truncates long ones, recomputes every aggregate and
// attaches the appendix and evidence layer. It is deterministic.
func PostProcess(doc Document, facts Facts) Document {
	evidenceCount := len(facts.Layer.Evidence)

	normalizeStage1(&doc.Stage1)
	normalizeInterpretation(&doc.Interpretation)
	doc.Interpretation.BasedOnPages = max(0, facts.TargetPages)
	doc.Interpretation.DetectedSignals = capSlice(doc.Interpretation.DetectedSignals, MaxDetectedSignals)
	doc.Interpretation.MissingElements = pad(doc.Interpretation.MissingElements,
		MinMissingElements, MaxMissingElements, fallbacks.missing,
		func(m MissingElement) string { return m.Key })

	for i := range doc.DecisionReadiness {
		doc.DecisionReadiness[i].Status = normalizeDecisionStatus(doc.DecisionReadiness[i].Status)
	}
	doc.DecisionReadiness = pad(doc.DecisionReadiness, MinDecisionElements, MaxDecisionElements,
		fallbacks.decision, func(d DecisionElement) string { return d.ElementName })
	// Padded rows get refs too, so one table never mixes [] and [0].
	for i := range doc.DecisionReadiness {
		doc.DecisionReadiness[i].EvidenceRefs = ensureRefs(doc.DecisionReadiness[i].EvidenceRefs, evidenceCount)
	}
	doc.Coverage = tally(doc.DecisionReadiness)

	for i := range doc.RequirementsBefore {
		r := &doc.RequirementsBefore[i]
		r.Category = normalizeCategory(r.Category)
		r.CurrentStatus = normalizeBeforeStatus(r.CurrentStatus)
	}
	doc.RequirementsBefore = pad(doc.RequirementsBefore, MinRequirements, MaxRequirements,
		fallbacks.before, func(r RequirementBefore) string { return r.RequirementName })
	for i := range doc.RequirementsAfter {
		doc.RequirementsAfter[i].Category = normalizeCategory(doc.RequirementsAfter[i].Category)
	}
	doc.RequirementsAfter = pad(doc.RequirementsAfter, MinRequirements, MaxRequirements,
		fallbacks.after, func(r RequirementAfter) string { return r.RequirementName })

	doc.Stage2Reasons = capSlice(doc.Stage2Reasons, MaxStage2Reasons)
	for i := range doc.Stage2Reasons {
		doc.Stage2Reasons[i].EvidenceRefs = ensureRefs(doc.Stage2Reasons[i].EvidenceRefs, evidenceCount)
	}
	doc.Stage3Needs = capSlice(doc.Stage3Needs, MaxStage3Needs)
	for i := range doc.Stage3Needs {
		n := &doc.Stage3Needs[i]
		n.Status = normalizeNeedStatus(n.Status)
		n.EvidenceRefs = ensureRefs(n.EvidenceRefs, evidenceCount)
	}

	enrichPackages(&doc.Stage4Packages, facts.Layer)

	impact := &doc.Stage5BusinessImpact
	impact.RecommendedOption = RecommendedOption
	impact.ClosingLine = closingLine(impact.ClosingLine)

	limitations := fmt.Sprintf("Analysis based on %d target pages and %d competitor pages. Scraped at %s.",
		facts.TargetPages, facts.CompetitorPages, facts.ScrapedAt.UTC().Format(time.DateOnly))
	doc.Appendix = Appendix{
		SampledURLs:              append([]string{}, facts.SampledURLs...),
		DataLimitations:          limitations,
		PagesAnalyzedTarget:      facts.TargetPages,
		PagesAnalyzedCompetitors: facts.CompetitorPages,
	}
	layer := facts.Layer
	doc.EvidenceLayer = &layer
	return doc
}

// tally recomputes the coverage score from the decision rows.
func tally(rows []DecisionElement) Coverage {
	c := Coverage{Total: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case StatusPresent:
			c.Present++
		case StatusWeak:
			c.Weak++
		case StatusMissing:
			c.Missing++
		}
	}
	return c
}

// ensureRefs keeps in-range evidence indices, defaulting to the first item
// when none survive and evidence exists.
func ensureRefs(refs []int, evidenceCount int) []int {
	out := make([]int, 0, MaxEvidenceRefs)
	seen := map[int]struct{}{}
	for _, r := range refs {
		if r < 0 || r >= evidenceCount {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == MaxEvidenceRefs {
			break
		}
	}
	if len(out) == 0 && evidenceCount > 0 {
		out = append(out, 0)
	}
	return out
}

func closingLine(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ClosingSentence) {
		return line
	}
	if line == "" {
		return ClosingSentence
	}
	if !strings.HasSuffix(line, ".") {
		line += "."
	}
	return line + " " + ClosingSentence
}

func normalizeStage1(s *Stage1) {
	s.ChatGPTPercent = clampPercent(s.ChatGPTPercent)
	s.GeminiPercent = clampPercent(s.GeminiPercent)
	s.PerplexityPercent = clampPercent(s.PerplexityPercent)
	s.ChatGPTLabel = normalizeLabel(s.ChatGPTLabel, s.ChatGPTPercent)
	s.GeminiLabel = normalizeLabel(s.GeminiLabel, s.GeminiPercent)
	s.PerplexityLabel = normalizeLabel(s.PerplexityLabel, s.PerplexityPercent)
}

func clampPercent(p int) int { return min(100, max(0, p)) }

// normalizeLabel matches a visibility label case-insensitively and derives
// it from the percentage when the generator produced something else.
func normalizeLabel(label string, percent int) string {
	if v, ok := matchEnum(label, LabelPoor, LabelLimited, LabelStrong); ok {
		return v
	}
	switch {
	case percent < 35:
		return LabelPoor
	case percent < 70:
		return LabelLimited
	default:
		return LabelStrong
	}
}

func normalizeInterpretation(in *Interpretation) {
	if v, ok := matchEnum(in.Confidence, ConfidenceShallow, ConfidencePartial, ConfidenceStrong); ok {
		in.Confidence = v
	}
	for i := range in.MissingElements {
		m := &in.MissingElements[i]
		if v, ok := matchEnum(m.Severity, SeverityCritical, SeveritySupporting); ok {
			m.Severity = v
		}
	}
	if in.DetectedSignals == nil {
		in.DetectedSignals = []string{}
	}
}

func normalizeDecisionStatus(s string) string {
	switch key := enumKey(s); key {
	case "fragmented":
		return StatusWeak
	case "not_found":
		return StatusMissing
	default:
		if v, ok := matchEnum(key, StatusPresent, StatusWeak, StatusMissing); ok {
			return v
		}
		return s
	}
}

func normalizeBeforeStatus(s string) string {
	switch key := enumKey(s); key {
	case "present", "fragmented":
		return StatusWeak
	default:
		if v, ok := matchEnum(key, StatusNotFound, StatusWeak, StatusMissing); ok {
			return v
		}
		return s
	}
}

func normalizeNeedStatus(s string) string {
	switch key := enumKey(s); key {
	case "missing":
		return StatusNotFound
	case "fragmented":
		return StatusWeak
	default:
		if v, ok := matchEnum(key, StatusNotFound, StatusWeak, StatusPresent); ok {
			return v
		}
		return s
	}
}

var categoryAliases = map[string]string{
	"trust and authority": CategoryTrustAuthority,
	"trust/authority":     CategoryTrustAuthority,
	"trust":               CategoryTrustAuthority,
	"entity":              CategoryEntityUnderstanding,
	"risk":                CategoryRiskReduction,
	"clarity":             CategoryDecisionClarity,
}

func normalizeCategory(c string) string {
	if v, ok := matchEnum(c, CategoryDecisionClarity, CategoryComparability, CategoryTrustAuthority,
		CategoryEntityUnderstanding, CategoryRiskReduction); ok {
		return v
	}
	if v, ok := categoryAliases[strings.ToLower(strings.TrimSpace(c))]; ok {
		return v
	}
	return c
}

// enumKey lowercases s and turns spaces and dashes into underscores.
func enumKey(s string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
}

func matchEnum(s string, allowed ...string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a, true
		}
	}
	return "", false
}

// enrichPackages fixes tier names and sizes and fills page titles from the
// detected services, company name and locations.
func enrichPackages(p *Packages, layer evidence.Layer) {
	profile := layer.CompanyProfile
	services := capSlice(append([]string(nil), profile.Services...), 6)
	locations := capSlice(append([]string(nil), profile.Locations...), 5)
	company := profile.CompanyName
	if company == "" || company == evidence.NotDetected {
		company = "this business"
	}
	s1, s2, s3 := serviceAt(services, 0), serviceAt(services, 1), serviceAt(services, 2)

	gaps := map[string]bool{}
	for _, item := range layer.Evidence {
		gaps[item.ProofType] = true
	}

	tiers := []*Package{&p.Entry, &p.Recommendation, &p.Authority}
	titles := [][]string{
		{
			"How " + s1 + " Works", s1 + " Pricing & Packages", s1 + " FAQ",
			"About " + company, "Contact " + company, "How " + s2 + " Works",
		},
		{
			"How " + s1 + " Works", s1 + " Pricing & Packages", s1 + " vs Alternatives",
			"Common mistakes when choosing " + s1, s1 + " FAQ",
			"How " + s2 + " Works", s2 + " Pricing & Packages", s2 + " vs Alternatives",
			"How " + s3 + " Works", s3 + " Pricing & Packages",
			"About " + company, "Contact " + company,
		},
		authorityTitles(s1, s2, company, locations),
	}

	for i, pkg := range tiers {
		pkg.PackageName = packageTiers[i].name
		pkg.Pages = packageTiers[i].pages
		pkg.WhatAICanDo = capSlice(pkg.WhatAICanDo, MaxWhatAICanDo)
		pkg.PagesToBuild = uniqueTitles(titles[i])
		pkg.ExamplePageTitle = pkg.PagesToBuild[0]
		if strings.TrimSpace(pkg.WhyAINeedsIt) == "" {
			pkg.WhyAINeedsIt = "AI selects sources that answer buyer questions end-to-end, with quotable structure."
		}
		if strings.TrimSpace(pkg.WhoThisIsFor) == "" {
			pkg.WhoThisIsFor = "Teams that want predictable AI visibility improvements with a fixed scope."
		}
		if strings.TrimSpace(pkg.ExpectedOutcome) == "" {
			pkg.ExpectedOutcome = "Higher LLM confidence to describe and compare you; more consistent inclusion in AI answers."
		}
	}

	if gaps[evidence.ProofNoPricing] || gaps[evidence.ProofNoContact] || gaps[evidence.ProofWeakEntitySignals] {
		p.Recommendation.WhoThisIsFor = "Teams that need to fix missing pricing/contact/entity clarity to stop AI defaulting to competitors."
		p.Recommendation.ExpectedOutcome = "LLMs can compare you with alternatives and cite specific proof blocks without guessing."
	}
	if len(locations) > 0 {
		p.Authority.WhyAINeedsIt = "Multi-location coverage requires consistent, location-specific entity pages so LLMs can recommend you for local-intent queries."
	}
}

func authorityTitles(s1, s2, company string, locations []string) []string {
	titles := []string{
		"How " + s1 + " Works", s1 + " Pricing & Packages", s1 + " vs Alternatives",
		"How " + s2 + " Works", s2 + " Pricing & Packages", s2 + " vs Alternatives",
		"About " + company, company + " Reviews & Case Studies", company + " Certifications & Standards",
	}
	if len(locations) > 0 {
		for _, loc := range capSlice(locations, 3) {
			titles = append(titles, s1+" in "+loc, s2+" in "+loc)
		}
	} else {
		titles = append(titles,
			"Best "+s1+" for different buyer situations",
			"When to choose "+s1+" vs "+s2,
			"Common questions about "+s1,
		)
	}
	return capSlice(titles, 18)
}

func serviceAt(services []string, i int) string {
	if i < len(services) && strings.TrimSpace(services[i]) != "" {
		return services[i]
	}
	if len(services) > 0 {
		return services[0]
	}
	return "your core service"
}

// uniqueTitles drops repeated titles, which occur when fewer than three
// services were detected.
func uniqueTitles(titles []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
