package audit

import (
	"fmt"
	"strings"
)

var (
	labels      = []string{LabelPoor, LabelLimited, LabelStrong}
	confidences = []string{ConfidenceShallow, ConfidencePartial, ConfidenceStrong}
	severities  = []string{SeverityCritical, SeveritySupporting}
	categories  = []string{
		CategoryDecisionClarity, CategoryComparability, CategoryTrustAuthority,
		CategoryEntityUnderstanding, CategoryRiskReduction,
	}
	decisionStatuses = []string{StatusPresent, StatusWeak, StatusMissing}
	beforeStatuses   = []string{StatusNotFound, StatusWeak, StatusMissing}
	needStatuses     = []string{StatusNotFound, StatusWeak, StatusPresent}
)

type violations []string

func (v *violations) addf(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v *violations) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.addf("%s is required", field)
	}
}

func (v *violations) oneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addf("%s %q must be one of %s", field, value, strings.Join(allowed, "|"))
}

func (v *violations) count(field string, n, lo, hi int) {
	if n < lo || n > hi {
		v.addf("%s has %d items, want %d-%d", field, n, lo, hi)
	}
}

func (v *violations) refs(field string, refs []int, evidenceCount int) {
	if len(refs) > MaxEvidenceRefs {
		v.addf("%s has %d evidence refs, want at most %d", field, len(refs), MaxEvidenceRefs)
	}
	for _, r := range refs {
		if r < 0 || r >= evidenceCount {
			v.addf("%s references evidence %d outside [0,%d)", field, r, evidenceCount)
		}
	}
}

// Validate checks a post-processed document against the schema and returns
// nil or a *SchemaViolationError listing every problem.
func Validate(doc Document) error {
	var v violations
	evidenceCount := 0
	if doc.EvidenceLayer != nil {
		evidenceCount = len(doc.EvidenceLayer.Evidence)
	}

	s1 := doc.Stage1
	for _, p := range []struct {
		name    string
		percent int
		label   string
	}{
		{"chatgpt", s1.ChatGPTPercent, s1.ChatGPTLabel},
		{"gemini", s1.GeminiPercent, s1.GeminiLabel},
		{"perplexity", s1.PerplexityPercent, s1.PerplexityLabel},
	} {
		if p.percent < 0 || p.percent > 100 {
			v.addf("stage_1_ai_visibility.%s_visibility_percent %d outside 0-100", p.name, p.percent)
		}
		v.oneOf("stage_1_ai_visibility."+p.name+"_label", p.label, labels)
	}
	v.required("stage_1_ai_visibility.hard_sentence", s1.HardSentence)

	in := doc.Interpretation
	v.required("ai_interpretation.summary", in.Summary)
	v.oneOf("ai_interpretation.confidence", in.Confidence, confidences)
	if in.BasedOnPages < 0 {
		v.addf("ai_interpretation.based_on_pages must be >= 0")
	}
	v.count("ai_interpretation.detected_signals", len(in.DetectedSignals), 0, MaxDetectedSignals)
	v.count("ai_interpretation.missing_elements", len(in.MissingElements), MinMissingElements, MaxMissingElements)
	for i, m := range in.MissingElements {
		field := fmt.Sprintf("ai_interpretation.missing_elements[%d]", i)
		v.required(field+".key", m.Key)
		v.required(field+".label", m.Label)
		v.oneOf(field+".severity", m.Severity, severities)
	}

	v.count("decision_readiness_audit", len(doc.DecisionReadiness), MinDecisionElements, MaxDecisionElements)
	for i, d := range doc.DecisionReadiness {
		field := fmt.Sprintf("decision_readiness_audit[%d]", i)
		v.required(field+".element_name", d.ElementName)
		v.oneOf(field+".status", d.Status, decisionStatuses)
		v.refs(field, d.EvidenceRefs, evidenceCount)
	}
	if want := tally(doc.DecisionReadiness); doc.Coverage != want {
		v.addf("decision_coverage_score %+v does not match decision rows %+v", doc.Coverage, want)
	}

	v.count("ai_requirements_before", len(doc.RequirementsBefore), MinRequirements, MaxRequirements)
	for i, r := range doc.RequirementsBefore {
		field := fmt.Sprintf("ai_requirements_before[%d]", i)
		v.required(field+".requirement_name", r.RequirementName)
		v.oneOf(field+".category", r.Category, categories)
		v.oneOf(field+".current_status", r.CurrentStatus, beforeStatuses)
	}
	v.count("ai_requirements_after", len(doc.RequirementsAfter), MinRequirements, MaxRequirements)
	for i, r := range doc.RequirementsAfter {
		field := fmt.Sprintf("ai_requirements_after[%d]", i)
		v.required(field+".requirement_name", r.RequirementName)
		v.oneOf(field+".category", r.Category, categories)
	}

	v.count("stage_2_why_ai_chooses_others", len(doc.Stage2Reasons), 0, MaxStage2Reasons)
	for i, r := range doc.Stage2Reasons {
		v.refs(fmt.Sprintf("stage_2_why_ai_chooses_others[%d]", i), r.EvidenceRefs, evidenceCount)
	}
	v.count("stage_3_what_ai_needs", len(doc.Stage3Needs), 0, MaxStage3Needs)
	for i, n := range doc.Stage3Needs {
		field := fmt.Sprintf("stage_3_what_ai_needs[%d]", i)
		v.required(field+".content_type", n.ContentType)
		v.oneOf(field+".status", n.Status, needStatuses)
		v.refs(field, n.EvidenceRefs, evidenceCount)
	}

	pkgs := []Package{doc.Stage4Packages.Entry, doc.Stage4Packages.Recommendation, doc.Stage4Packages.Authority}
	for i, p := range pkgs {
		tier := packageTiers[i]
		if p.PackageName != tier.name || p.Pages != tier.pages {
			v.addf("stage_4_packages tier %d must be %q with %d pages", i, tier.name, tier.pages)
		}
		v.count("stage_4_packages."+tier.name+".what_ai_can_do", len(p.WhatAICanDo), 0, MaxWhatAICanDo)
	}

	impact := doc.Stage5BusinessImpact
	if impact.RecommendedOption != RecommendedOption {
		v.addf("stage_5_business_impact.recommended_option must be %q", RecommendedOption)
	}
	if !strings.HasSuffix(impact.ClosingLine, ClosingSentence) {
		v.addf("stage_5_business_impact.closing_line must end with %q", ClosingSentence)
	}

	if len(v) == 0 {
		return nil
	}
	return &SchemaViolationError{Violations: v}
}
