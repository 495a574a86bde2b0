package collyfetcher

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

// chromeSelector matches elements whose text never counts as page content.
const chromeSelector = "script, style, nav, footer, header"

type extraction struct {
	title           string
	metaDescription string
	text            string
	links           []string
}

func (e extraction) apply(result *crawler.FetchResult, rawHTML string) {
	result.HTML = rawHTML
	result.Title = e.title
	result.MetaDescription = e.metaDescription
	result.Text = e.text
	result.Links = e.links
}

// extractDocument parses body and pulls the title, meta description, same-host
// links (resolved against pageURL) and the visible text.
func extractDocument(pageURL string, body []byte) (extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extraction{}, fmt.Errorf("goquery parse: %w", err)
	}

	var out extraction
	out.title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "description") {
			return true
		}
		out.metaDescription = strings.TrimSpace(s.AttrOr("content", ""))
		return false
	})

	if base, err := url.Parse(pageURL); err == nil {
		seen := make(map[string]struct{})
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			link, ok := crawler.ResolveLink(base, s.AttrOr("href", ""))
			if !ok {
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			out.links = append(out.links, link)
		})
	}

	doc.Find(chromeSelector).Remove()
	out.text = visibleText(doc.Nodes)
	return out, nil
}

// visibleText joins the trimmed, non-empty text nodes under nodes with single
// spaces.
func visibleText(nodes []*html.Node) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
