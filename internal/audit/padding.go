package audit

import "strings"

// fallbacks holds the deterministic rows used to bring short sections up to
// their minimum size. Rows are appended in table order, skipping any whose
// name the generator already produced.
var fallbacks = struct {
	missing  []MissingElement
	decision []DecisionElement
	before   []RequirementBefore
	after    []RequirementAfter
}{
	missing: []MissingElement{
		{"service_differentiation", "No clear service differentiation", "AI cannot explain how you differ from alternatives", SeverityCritical},
		{"decision_context", "No decision-making context", "AI cannot determine who this is best for or why", SeverityCritical},
		{"pricing_structure", "No pricing or value structure", "AI cannot compare you to competitors on value", SeverityCritical},
		{"comparison_content", "No comparison or alternatives", "No content showing trade-offs or competitive position", SeveritySupporting},
		{"audience_fit", "No audience fit (who it's for / not for)", "AI cannot guide customers on whether this fits their needs", SeveritySupporting},
	},
	decision: []DecisionElement{
		decisionRow("Service Definition Pages", StatusMissing,
			"LLMs require structured, quotable service explanations.",
			"Service information not clearly structured for AI citation.",
			"AI cannot confidently explain offerings to users."),
		decisionRow("Service Scope Boundaries", StatusMissing,
			"AI needs explicit scope boundaries (what's included/excluded).",
			"No clear scope boundaries detected.",
			"AI cannot explain service limitations."),
		decisionRow("Pricing / Value Anchors", StatusMissing,
			"AI systems need explicit pricing comparisons to evaluate value.",
			"Pricing not detected or not structured for AI parsing.",
			"AI cannot compare value against alternatives."),
		decisionRow("Alternatives / Who NOT for", StatusMissing,
			"AI needs clear fit/misfit guidance.",
			"No guidance on who this service is NOT for.",
			"AI cannot determine negative fit."),
		decisionRow("Measurable Differentiation", StatusMissing,
			"AI needs quantifiable differentiation points.",
			"No measurable differentiation detected.",
			"AI cannot explain competitive advantage."),
		decisionRow("Testimonials with Context", StatusWeak,
			"AI needs testimonials with specific outcomes.",
			"Generic testimonials without measurable context.",
			"Lower proof quality for recommendations."),
		decisionRow("Case Studies with Outcomes", StatusMissing,
			"AI needs case studies with measurable results.",
			"No case studies detected.",
			"No proof of real-world results."),
		decisionRow("About/Team/Expertise", StatusWeak,
			"AI needs structured entity information.",
			"About page exists but lacks authority markers.",
			"Weak entity signals for knowledge graphs."),
		decisionRow("Policies / Guarantees", StatusMissing,
			"AI needs risk reduction signals.",
			"No guarantee or refund policy detected.",
			"Higher perceived risk for users."),
		decisionRow("FAQ Content", StatusMissing,
			"LLMs require structured answers to common decision questions.",
			"No FAQ or Q&A content detected across analyzed pages.",
			"AI lacks decision-support content to quote."),
		decisionRow("Operational Clarity", StatusWeak,
			"AI systems need clear operational details (hours, booking, process).",
			"Operational information not consistently structured.",
			"AI cannot provide complete operational details to users."),
		decisionRow("Contact / Conversion Path", StatusWeak,
			"AI needs clear CTAs and contact methods.",
			"Contact information present but not clearly structured.",
			"AI cannot guide users to next steps."),
	},
	before: []RequirementBefore{
		{"Pricing ranges / packages", CategoryComparability,
			"AI needs pricing ranges to compare value against alternatives.", StatusNotFound,
			"AI defaults to competitors with visible pricing."},
		{"Service scope boundaries", CategoryDecisionClarity,
			"AI needs clear scope to explain what's included and excluded.", StatusNotFound,
			"AI cannot confidently describe service boundaries."},
		{"Process / how it works", CategoryDecisionClarity,
			"AI needs operational clarity to explain how the service works.", StatusWeak,
			"AI cannot guide users through the process."},
		{"Alternatives / who it's NOT for", CategoryComparability,
			"AI needs audience fit statements to match businesses to user needs.", StatusNotFound,
			"AI cannot determine who this service is best for."},
		{"Differentiation (measurable)", CategoryComparability,
			"AI needs competitive positioning to explain trade-offs.", StatusNotFound,
			"AI cannot differentiate this business from alternatives."},
		{"Testimonials (context)", CategoryTrustAuthority,
			"AI needs proof of results to build recommendation confidence.", StatusWeak,
			"AI has lower trust in recommendation quality."},
		{"Case studies (outcomes)", CategoryTrustAuthority,
			"AI needs real case studies to support recommendations with evidence.", StatusNotFound,
			"AI cannot provide proof of results."},
		{"About/team authority", CategoryEntityUnderstanding,
			"AI needs structured entity data for knowledge graph inclusion.", StatusWeak,
			"AI treats this as a weak entity with limited authority."},
		{"Guarantees/refunds/risk reducers", CategoryRiskReduction,
			"AI needs guarantees/refunds to recommend with confidence.", StatusNotFound,
			"AI sees this as higher-risk recommendation."},
		{"FAQ objections", CategoryDecisionClarity,
			"AI needs structured Q&A to answer user decision questions.", StatusNotFound,
			"AI lacks quotable answers to common questions."},
		{"Local/entity signals", CategoryEntityUnderstanding,
			"AI needs location and entity proof for local recommendations.", StatusWeak,
			"AI cannot confidently recommend for local queries."},
		{"Structured summaries AI can quote", CategoryDecisionClarity,
			"AI needs quotable summaries for direct citation.", StatusNotFound,
			"AI cannot directly cite key information."},
		{"Contact / conversion clarity", CategoryRiskReduction,
			"AI needs clear CTAs to guide users to next steps.", StatusWeak,
			"AI cannot guide users to conversion."},
		{"Value anchors", CategoryComparability,
			"AI needs value anchors to contextualize pricing.", StatusNotFound,
			"AI cannot explain value proposition."},
		{"Policies / expectations", CategoryRiskReduction,
			"AI needs clear policies to reduce buyer uncertainty.", StatusNotFound,
			"AI sees unclear expectations as risk."},
	},
	after: []RequirementAfter{
		{"Pricing ranges / packages", CategoryComparability,
			"Add pricing tiers or ranges with value anchors and comparison points.",
			"AI can compare value and recommend based on budget fit."},
		{"Service scope boundaries", CategoryDecisionClarity,
			"Create service pages with clear 'what's included / not included' sections.",
			"AI can explain service scope boundaries to users."},
		{"Process / how it works", CategoryDecisionClarity,
			"Add process/timeline/delivery information in structured format.",
			"AI can explain how the service works step-by-step."},
		{"Alternatives / who it's NOT for", CategoryComparability,
			"Create 'Who this is for / not for' sections on key pages.",
			"AI can match this business to specific user needs."},
		{"Differentiation (measurable)", CategoryComparability,
			"Build 'vs alternatives' pages explaining trade-offs and differentiation.",
			"AI can position this business against competitors."},
		{"Testimonials (context)", CategoryTrustAuthority,
			"Add testimonials with specific results, context, and attribution.",
			"AI gains proof to support recommendations with evidence."},
		{"Case studies (outcomes)", CategoryTrustAuthority,
			"Create case studies with measurable outcomes and specific details.",
			"AI can cite real-world results to support recommendations."},
		{"About/team authority", CategoryEntityUnderstanding,
			"Strengthen About/Team pages with authority markers and structured data.",
			"AI treats this as a credible entity in knowledge graphs."},
		{"Guarantees/refunds/risk reducers", CategoryRiskReduction,
			"Add guarantees, refund policies, or risk-reduction statements.",
			"AI can recommend with lower perceived risk."},
		{"FAQ objections", CategoryDecisionClarity,
			"Create structured FAQ sections answering decision-level questions.",
			"AI can quote direct answers to user questions."},
		{"Local/entity signals", CategoryEntityUnderstanding,
			"Add location proof, hours, service areas, and local entity markers.",
			"AI can confidently recommend for local queries."},
		{"Structured summaries AI can quote", CategoryDecisionClarity,
			"Build key features, benefits, and decision blocks in quotable format.",
			"AI can directly cite structured summaries."},
		{"Contact / conversion clarity", CategoryRiskReduction,
			"Add clear CTAs, contact methods, and next-steps information.",
			"AI can guide users to conversion with clarity."},
		{"Value anchors", CategoryComparability,
			"Add value comparisons, ROI examples, or cost-benefit explanations.",
			"AI can contextualize pricing and explain value."},
		{"Policies / expectations", CategoryRiskReduction,
			"Create clear policies, SLAs, and expectation-setting content.",
			"AI can explain clear expectations and reduce buyer uncertainty."},
	},
}

func decisionRow(name, status, requires, found, impact string) DecisionElement {
	return DecisionElement{
		ElementName:            name,
		Status:                 status,
		WhatAIRequires:         requires,
		WhatWeFound:            found,
		ImpactOnRecommendation: impact,
		EvidenceRefs:           []int{},
	}
}

// pad appends table rows whose key is not already present until items has
// at least n entries, then truncates to limit.
func pad[T any](items []T, n, limit int, table []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[strings.ToLower(strings.TrimSpace(key(item)))] = struct{}{}
	}
	for _, row := range table {
		if len(items) >= n {
			break
		}
		k := strings.ToLower(key(row))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		items = append(items, row)
	}
	return capSlice(items, limit)
}

func capSlice[T any](items []T, n int) []T {
	if items == nil {
		return []T{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
