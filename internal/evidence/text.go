package evidence

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	wsRE    = regexp.MustCompile(`\s+`)
	emailRE = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

func normWS(s string) string {
	return wsRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// dedupe normalizes whitespace, drops blanks and keeps the first of any
// case-insensitive duplicates.
func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		t := normWS(item)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// truncate bounds s to maxLen runes, ending in an ellipsis when cut.
func truncate(s string, maxLen int) string {
	t := normWS(s)
	if utf8.RuneCountInString(t) <= maxLen {
		return t
	}
	runes := []rune(t)
	return strings.TrimRightFunc(string(runes[:maxLen-1]), unicode.IsSpace) + "…"
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// snippetsAround returns up to maxSnips excerpts of text centered on the
// first occurrence of each needle, in needle order.
func snippetsAround(text string, needles []string, maxSnips, window int) []string {
	if text == "" {
		return []string{}
	}
	runes := []rune(text)
	lower := strings.Map(unicode.ToLower, text)
	snips := make([]string, 0, maxSnips)
	for _, needle := range needles {
		idx := strings.Index(lower, strings.ToLower(needle))
		if idx < 0 {
			continue
		}
		pos := utf8.RuneCountInString(lower[:idx])
		start := max(0, pos-window)
		end := min(len(runes), pos+runeLen(needle)+window)
		snips = append(snips, truncate(string(runes[start:end]), 260))
		if len(snips) >= maxSnips {
			break
		}
	}
	return dedupe(snips)
}

// splitSentences breaks normalized text after ., ! or ? followed by a space.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				out = append(out, strings.TrimSpace(text[start:i+1]))
				start = i + 2
			}
		}
	}
	if start < len(text) {
		out = append(out, strings.TrimSpace(text[start:]))
	}
	return out
}

// bestOfferSentences picks one or two summary sentences from page text. It
// returns "" when nothing looks like an offer statement.
func bestOfferSentences(text string) string {
	t := normWS(text)
	if t == "" {
		return ""
	}
	var chunks []string
	for _, c := range splitSentences(t) {
		if n := runeLen(c); n >= 40 && n <= 260 {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) > 80 {
		chunks = chunks[:80]
	}

	type scored struct {
		score int
		text  string
	}
	var candidates []scored
	for _, c := range chunks {
		lc := strings.ToLower(c)
		if containsAny(lc, offerBoilerplate) {
			continue
		}
		score := 0
		if containsAny(lc, offerVerbs) {
			score += 3
		}
		if n := runeLen(c); n >= 80 && n <= 180 {
			score += 2
		}
		candidates = append(candidates, scored{score: score, text: c})
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return runeLen(candidates[i].text) < runeLen(candidates[j].text)
	})

	top := []string{candidates[0].text}
	for _, c := range candidates[1:] {
		if c.text != top[0] && runeLen(top[0]+" "+c.text) <= 360 {
			top = append(top, c.text)
			break
		}
	}
	return truncate(strings.Join(top, " "), 360)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
