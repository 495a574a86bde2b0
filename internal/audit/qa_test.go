package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-visibility-audit/internal/evidence"
)

func TestDehedge(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"This may be a gap.":                 "This is a gap.",
		"AI could potentially skip you":      "AI skip you",
		"Maybe AI likely prefers rivals.":    "AI prefers rivals.",
		"No hedging here.":                   "No hedging here.",
		"The mayor could be right, MIGHT be": "The mayor is right, is",
		"":                                   "",
	}
	for in, want := range cases {
		require.Equal(t, want, dehedge(in), in)
	}
}

func TestQAPersonalizesStage2(t *testing.T) {
	t.Parallel()

	profile := evidence.CompanyProfile{CompanyName: "Acme", Services: []string{"Roofing"}}
	doc := Document{Stage2Reasons: []Stage2Reason{
		{HowLLMsDecide: "LLMs compare pricing.", WhatWeFoundOnYourSite: ""},
		{HowLLMsDecide: "Acme has no FAQ.", WhatMustBeBuilt: "Publish answers."},
		{HowLLMsDecide: "Generic.", WhatMustBeBuilt: "Add How Roofing Works."},
	}}

	out, err := QA(doc, profile)
	require.NoError(t, err)

	first := out.Stage2Reasons[0]
	require.Equal(t, "Acme: Roofing coverage is not structured for AI quoting. Not detected in the crawl.", first.WhatWeFoundOnYourSite)
	require.Equal(t, `Build: "How Roofing Works" + "Roofing Pricing & Packages" + a structured FAQ block.`, first.WhatMustBeBuilt)

	second := out.Stage2Reasons[1]
	require.Empty(t, second.WhatWeFoundOnYourSite, "already mentions the company")
	require.Equal(t, `Publish answers. Example: "How Roofing Works".`, second.WhatMustBeBuilt)

	third := out.Stage2Reasons[2]
	require.Equal(t, "Add How Roofing Works.", third.WhatMustBeBuilt)
	require.Empty(t, third.WhatWeFoundOnYourSite, "advice names the service")

	require.Equal(t, defaultNeutrality, out.Stage5BusinessImpact.NeutralityBlock)
	require.Equal(t, ClosingSentence, out.Stage5BusinessImpact.ClosingLine)
	require.Equal(t, "LLMs compare pricing.", doc.Stage2Reasons[0].HowLLMsDecide, "input is not mutated")
	require.Empty(t, doc.Stage2Reasons[0].WhatMustBeBuilt)
}

func TestQAClipsPersonalizedText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 80)
	out, err := QA(Document{Stage2Reasons: []Stage2Reason{{WhatWeFoundOnYourSite: long}}},
		evidence.CompanyProfile{CompanyName: "Acme"})
	require.NoError(t, err)
	found := out.Stage2Reasons[0].WhatWeFoundOnYourSite
	require.True(t, strings.HasPrefix(found, "Acme: your core service coverage"))
	require.Equal(t, maxPersonalizedText, len([]rune(found)))
	require.True(t, strings.HasSuffix(found, "…"))
}

func TestQAReplacesCheap(t *testing.T) {
	t.Parallel()

	doc := Document{Stage5BusinessImpact: BusinessImpact{
		WhatStayingInvisibleCosts: "A cheap fix beats lost deals.",
		OurOfferBlock:             "Cheap and fast.",
		NeutralityBlock:           "Any team can ship a cheap version of this.",
		WhyWaitingMakesThisWorse:  "Cheap wins go to whoever moves first.",
	}}
	out, err := QA(doc, evidence.CompanyProfile{})
	require.NoError(t, err)
	require.Equal(t, "A cost-effective fix beats lost deals.", out.Stage5BusinessImpact.WhatStayingInvisibleCosts)
	require.Equal(t, "cost-effective and fast.", out.Stage5BusinessImpact.OurOfferBlock)
	require.Equal(t, "Any team can ship a cost-effective version of this.", out.Stage5BusinessImpact.NeutralityBlock)
	require.Equal(t, "cost-effective wins go to whoever moves first.", out.Stage5BusinessImpact.WhyWaitingMakesThisWorse)
}
