// Package detector decides when a static homepage should be re-rendered in
// a headless browser.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

const (
	defaultMinWords = 50
	// scriptSharePercent is the share of the document, in bytes, taken by
	// script elements above which a thin page counts as client-rendered.
	scriptSharePercent = 25
)

// appRoots are the mount points the common SPA frameworks render into.
const appRoots = "#__next, #__nuxt, #root, #app, [data-reactroot], [ng-app], [ng-version]"

// Heuristic promotes homepages that came back with little visible text and
// look like client-rendered applications.
type Heuristic struct {
	// MinWords is the visible word count at which a page is considered
	// server-rendered regardless of markup.
	MinWords int
}

// NewHeuristic creates a detector; minWords <= 0 selects the default.
func NewHeuristic(minWords int) *Heuristic {
	if minWords <= 0 {
		minWords = defaultMinWords
	}
	return &Heuristic{MinWords: minWords}
}

// ShouldPromote reports whether a headless render is worth attempting. Only
// 200 responses qualify; an empty body always does.
func (h *Heuristic) ShouldPromote(probe crawler.RenderProbe) bool {
	if probe.StatusCode != 200 {
		return false
	}
	if len(bytes.TrimSpace(probe.HTML)) == 0 {
		return true
	}
	if probe.WordCount >= h.MinWords {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(probe.HTML))
	if err != nil {
		return false
	}
	if doc.Find(appRoots).Length() > 0 {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Find("noscript").Text()), "javascript") {
		return true
	}
	return scriptShare(doc, len(probe.HTML)) >= scriptSharePercent
}

// scriptShare is the percentage of total bytes spent on script elements,
// tags included.
func scriptShare(doc *goquery.Document, total int) int {
	covered := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err == nil {
			covered += len(html)
		}
	})
	return min(covered*100/total, 100)
}
