package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

func testLayer(services, locations []string, proofTypes ...string) evidence.Layer {
	layer := evidence.Layer{
		CompanyProfile: evidence.CompanyProfile{
			CompanyName: "Acme",
			Services:    services,
			Locations:   locations,
		},
	}
	for _, pt := range proofTypes {
		layer.Evidence = append(layer.Evidence, evidence.Item{ProofType: pt})
	}
	return layer
}

func TestPostProcessEnrichesPackages(t *testing.T) {
	t.Parallel()

	layer := testLayer([]string{"Roofing", "Gutters", "Siding"}, nil, evidence.ProofNoPricing)
	doc := PostProcess(generatedDoc(12), Facts{Layer: layer, ScrapedAt: time.Unix(0, 0)})
	pkgs := doc.Stage4Packages

	require.Equal(t, []string{
		"How Roofing Works", "Roofing Pricing & Packages", "Roofing FAQ",
		"About Acme", "Contact Acme", "How Gutters Works",
	}, pkgs.Entry.PagesToBuild)
	require.Equal(t, "How Roofing Works", pkgs.Entry.ExamplePageTitle)
	require.Len(t, pkgs.Recommendation.PagesToBuild, 12)
	require.Contains(t, pkgs.Recommendation.PagesToBuild, "Siding Pricing & Packages")
	require.Equal(t,
		"Teams that need to fix missing pricing/contact/entity clarity to stop AI defaulting to competitors.",
		pkgs.Recommendation.WhoThisIsFor)
	require.Equal(t, "Teams that want predictable AI visibility improvements with a fixed scope.", pkgs.Entry.WhoThisIsFor)
	require.Contains(t, pkgs.Authority.PagesToBuild, "When to choose Roofing vs Gutters")
	require.Equal(t, "AI selects sources that answer buyer questions end-to-end, with quotable structure.", pkgs.Authority.WhyAINeedsIt)
}

func TestPostProcessLocationPages(t *testing.T) {
	t.Parallel()

	layer := testLayer([]string{"Roofing", "Gutters"}, []string{"Austin", "Dallas", "Houston", "Waco"})
	doc := PostProcess(generatedDoc(12), Facts{Layer: layer})
	authority := doc.Stage4Packages.Authority

	require.Len(t, authority.PagesToBuild, 15)
	require.Contains(t, authority.PagesToBuild, "Gutters in Houston")
	require.NotContains(t, authority.PagesToBuild, "Roofing in Waco")
	require.Contains(t, authority.WhyAINeedsIt, "Multi-location coverage")
	require.Equal(t, "Teams that want predictable AI visibility improvements with a fixed scope.",
		doc.Stage4Packages.Recommendation.WhoThisIsFor)
}

func TestPostProcessWithoutServices(t *testing.T) {
	t.Parallel()

	doc := PostProcess(generatedDoc(12), Facts{Layer: testLayer(nil, nil)})
	entry := doc.Stage4Packages.Entry
	require.Equal(t, "How your core service Works", entry.ExamplePageTitle)
	require.Len(t, entry.PagesToBuild, 5, "repeated titles are dropped")
	require.Empty(t, doc.DecisionReadiness[0].EvidenceRefs, "no evidence means no refs")
}

func TestPostProcessTruncatesLongSections(t *testing.T) {
	t.Parallel()

	doc := generatedDoc(25)
	for range 10 {
		doc.Stage2Reasons = append(doc.Stage2Reasons, doc.Stage2Reasons[0])
		doc.Interpretation.DetectedSignals = append(doc.Interpretation.DetectedSignals, "signal")
	}
	doc.Stage4Packages.Entry.WhatAICanDo = []string{"a", "b", "c", "d", "e"}

	out := PostProcess(doc, Facts{Layer: testLayer(nil, nil, evidence.ProofNoContact)})
	require.Len(t, out.DecisionReadiness, MaxDecisionElements)
	require.Equal(t, MaxDecisionElements, out.Coverage.Total)
	require.Len(t, out.Stage2Reasons, MaxStage2Reasons)
	require.Len(t, out.Interpretation.DetectedSignals, MaxDetectedSignals)
	require.Len(t, out.Stage4Packages.Entry.WhatAICanDo, MaxWhatAICanDo)
	require.NoError(t, Validate(out))
}

func TestEnsureRefs(t *testing.T) {
	t.Parallel()

	require.Equal(t, []int{2, 0, 1}, ensureRefs([]int{2, 2, -1, 0, 1, 3}, 4))
	require.Equal(t, []int{0}, ensureRefs([]int{7}, 4))
	require.Equal(t, []int{0}, ensureRefs(nil, 1))
	require.Empty(t, ensureRefs([]int{0}, 0))
}

func TestClosingLine(t *testing.T) {
	t.Parallel()

	require.Equal(t, ClosingSentence, closingLine(""))
	require.Equal(t, "Act now. "+ClosingSentence, closingLine("Act now."))
	require.Equal(t, "Done. "+ClosingSentence, closingLine("Done. "+ClosingSentence))
}

func TestNormalizeStatuses(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusMissing, normalizeDecisionStatus("Not Found"))
	require.Equal(t, StatusWeak, normalizeDecisionStatus("FRAGMENTED"))
	require.Equal(t, "unknown", normalizeDecisionStatus("unknown"))
	require.Equal(t, StatusWeak, normalizeBeforeStatus("Present"))
	require.Equal(t, StatusNotFound, normalizeBeforeStatus("not-found"))
	require.Equal(t, StatusNotFound, normalizeNeedStatus("missing"))
	require.Equal(t, StatusPresent, normalizeNeedStatus("Present"))
	require.Equal(t, CategoryRiskReduction, normalizeCategory("risk reduction"))
	require.Equal(t, LabelLimited, normalizeLabel("medium", 50))
	require.Equal(t, LabelPoor, normalizeLabel("", 10))
}
