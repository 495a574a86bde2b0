// Package audit turns an evidence layer into a schema-valid visibility audit
// document. Generation output is parsed, repaired, padded, recounted and
// checked before it is accepted; nothing invalid leaves this package.
package audit

import (
	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

// Enumerated values accepted by the document schema.
const (
	LabelPoor    = "Poor"
	LabelLimited = "Limited"
	LabelStrong  = "Strong"

	ConfidenceShallow = "shallow"
	ConfidencePartial = "partial"
	ConfidenceStrong  = "strong"

	SeverityCritical   = "critical"
	SeveritySupporting = "supporting"

	StatusPresent  = "present"
	StatusWeak     = "weak"
	StatusMissing  = "missing"
	StatusNotFound = "not_found"

	CategoryDecisionClarity     = "Decision Clarity"
	CategoryComparability       = "Comparability"
	CategoryTrustAuthority      = "Trust & Authority"
	CategoryEntityUnderstanding = "Entity Understanding"
	CategoryRiskReduction       = "Risk Reduction"
)

// Cardinality bounds of the structural arrays.
const (
	MinMissingElements  = 4
	MaxMissingElements  = 6
	MaxDetectedSignals  = 8
	MinDecisionElements = 12
	MaxDecisionElements = 18
	MinRequirements     = 10
	MaxRequirements     = 20
	MaxStage2Reasons    = 5
	MaxStage3Needs      = 8
	MaxWhatAICanDo      = 4
	MaxEvidenceRefs     = 3
)

// Fixed recommendation wording for the closing section.
const (
	RecommendedOption = "30-page AI Recommendation package"
	ClosingSentence   = "Based on this, the recommended option is the 30-page AI Recommendation package."
)

// Document is the accepted audit. Field names follow the wire schema the
// generator is asked to produce.
type Document struct {
	Stage1               Stage1              `json:"stage_1_ai_visibility"`
	Interpretation       Interpretation      `json:"ai_interpretation"`
	DecisionReadiness    []DecisionElement   `json:"decision_readiness_audit"`
	Coverage             Coverage            `json:"decision_coverage_score"`
	Verdict              map[string]string   `json:"recommendation_verdict,omitempty"`
	RequirementsBefore   []RequirementBefore `json:"ai_requirements_before"`
	RequirementsAfter    []RequirementAfter  `json:"ai_requirements_after"`
	Stage2Reasons        []Stage2Reason      `json:"stage_2_why_ai_chooses_others"`
	Stage3Needs          []Stage3Need        `json:"stage_3_what_ai_needs"`
	Stage4Packages       Packages            `json:"stage_4_packages"`
	Stage5BusinessImpact BusinessImpact      `json:"stage_5_business_impact"`
	Appendix             Appendix            `json:"appendix"`
	EvidenceLayer        *evidence.Layer     `json:"evidence_layer,omitempty"`
}

// Stage1 estimates how often assistants would recommend the business.
type Stage1 struct {
	ChatGPTPercent    int    `json:"chatgpt_visibility_percent"`
	ChatGPTLabel      string `json:"chatgpt_label"`
	GeminiPercent     int    `json:"gemini_visibility_percent"`
	GeminiLabel       string `json:"gemini_label"`
	PerplexityPercent int    `json:"perplexity_visibility_percent"`
	PerplexityLabel   string `json:"perplexity_label"`
	HardSentence      string `json:"hard_sentence"`
}

// Interpretation is what an assistant can and cannot understand today.
type Interpretation struct {
	Summary         string           `json:"summary"`
	Confidence      string           `json:"confidence"`
	BasedOnPages    int              `json:"based_on_pages"`
	DetectedSignals []string         `json:"detected_signals"`
	MissingElements []MissingElement `json:"missing_elements"`
}

// MissingElement is one gap that blocks confident recommendations.
type MissingElement struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Impact   string `json:"impact"`
	Severity string `json:"severity"`
}

// DecisionElement is one row of the decision readiness audit.
type DecisionElement struct {
	ElementName            string `json:"element_name"`
	Status                 string `json:"status"`
	WhatAIRequires         string `json:"what_ai_requires"`
	WhatWeFound            string `json:"what_we_found"`
	ImpactOnRecommendation string `json:"impact_on_recommendation"`
	EvidenceRefs           []int  `json:"evidence_refs"`
}

// Coverage tallies DecisionReadiness by status. It is always recomputed.
type Coverage struct {
	Present int `json:"present"`
	Weak    int `json:"weak"`
	Missing int `json:"missing"`
	Total   int `json:"total"`
}

// RequirementBefore is a requirement in its current, unmet state.
type RequirementBefore struct {
	RequirementName string `json:"requirement_name"`
	Category        string `json:"category"`
	WhyAINeedsThis  string `json:"why_ai_needs_this"`
	CurrentStatus   string `json:"current_status"`
	ImpactIfMissing string `json:"impact_if_missing"`
}

// RequirementAfter is what must be built to meet a requirement.
type RequirementAfter struct {
	RequirementName   string `json:"requirement_name"`
	Category          string `json:"category"`
	WhatMustBeBuilt   string `json:"what_must_be_built"`
	AIOutcomeUnlocked string `json:"ai_outcome_unlocked"`
}

// Stage2Reason explains why assistants pick someone else.
type Stage2Reason struct {
	HowLLMsDecide         string `json:"how_llms_decide"`
	WhatWeFoundOnYourSite string `json:"what_we_found_on_your_site"`
	WhatAIDoesInstead     string `json:"what_ai_does_instead"`
	WhatMustBeBuilt       string `json:"what_must_be_built"`
	EvidenceRefs          []int  `json:"evidence_refs"`
	WhatIsMissing         string `json:"what_is_missing,omitempty"`
	WhatWeSaw             string `json:"what_we_saw,omitempty"`
}

// Stage3Need is a content type assistants need.
type Stage3Need struct {
	ContentType   string `json:"content_type"`
	WhatItUnlocks string `json:"what_it_unlocks"`
	Status        string `json:"status"`
	WhatWeSaw     string `json:"what_we_saw"`
	Impact        string `json:"impact"`
	EvidenceRefs  []int  `json:"evidence_refs"`
}

// Packages are the three fixed page tiers.
type Packages struct {
	Entry          Package `json:"ai_entry_10_pages"`
	Recommendation Package `json:"ai_recommendation_30_pages"`
	Authority      Package `json:"ai_authority_100_pages"`
}

// Package is one page tier.
type Package struct {
	PackageName      string   `json:"package_name"`
	Pages            int      `json:"pages"`
	Purpose          string   `json:"purpose"`
	Messaging        string   `json:"messaging"`
	WhatAICanDo      []string `json:"what_ai_can_do"`
	TiesToFindings   string   `json:"ties_to_findings"`
	WhyAINeedsIt     string   `json:"why_ai_needs_it,omitempty"`
	WhoThisIsFor     string   `json:"who_this_is_for,omitempty"`
	ExpectedOutcome  string   `json:"expected_outcome,omitempty"`
	PagesToBuild     []string `json:"pages_to_build"`
	ExamplePageTitle string   `json:"example_page_title,omitempty"`
}

// BusinessImpact is the closing section.
type BusinessImpact struct {
	WhatStayingInvisibleCosts string `json:"what_staying_invisible_costs"`
	WhyAIVisibilityCompounds  string `json:"why_ai_visibility_compounds"`
	WhyWaitingMakesThisWorse  string `json:"why_waiting_makes_this_worse"`
	CompetitorPreferenceProof string `json:"competitor_preference_proof"`
	RecommendedOption         string `json:"recommended_option"`
	ClosingLine               string `json:"closing_line"`
	NeutralityBlock           string `json:"neutrality_block,omitempty"`
	OurOfferBlock             string `json:"our_offer_block,omitempty"`
}

// Appendix records what the audit was based on. It is filled in by the
// runner, never by the generator.
type Appendix struct {
	SampledURLs              []string `json:"sampled_urls"`
	DataLimitations          string   `json:"data_limitations"`
	PagesAnalyzedTarget      int      `json:"pages_analyzed_target"`
	PagesAnalyzedCompetitors int      `json:"pages_analyzed_competitors"`
}

// documentFields lists the top-level keys a generated document may carry.
var documentFields = map[string]struct{}{
	"stage_1_ai_visibility":         {},
	"ai_interpretation":             {},
	"decision_readiness_audit":      {},
	"decision_coverage_score":       {},
	"recommendation_verdict":        {},
	"ai_requirements_before":        {},
	"ai_requirements_after":         {},
	"stage_2_why_ai_chooses_others": {},
	"stage_3_what_ai_needs":         {},
	"stage_4_packages":              {},
	"stage_5_business_impact":       {},
	"appendix":                      {},
	"evidence_layer":                {},
}
