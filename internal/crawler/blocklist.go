package crawler

import "strings"

// domainPatternBlocklist matches hosts against exact names and "*.suffix" /
// ".suffix" wildcards. A nil list blocks nothing.
type domainPatternBlocklist struct {
	exact    map[string]struct{}
	suffixes map[string]struct{}
}

func newDomainPatternBlocklist(patterns []string) *domainPatternBlocklist {
	bl := &domainPatternBlocklist{
		exact:    make(map[string]struct{}),
		suffixes: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		if suffix, ok := cutWildcard(value); ok {
			if suffix != "" {
				bl.suffixes[suffix] = struct{}{}
			}
			continue
		}
		if value != "" {
			bl.exact[value] = struct{}{}
		}
	}
	if len(bl.exact) == 0 && len(bl.suffixes) == 0 {
		return nil
	}
	return bl
}

func cutWildcard(value string) (string, bool) {
	if suffix, ok := strings.CutPrefix(value, "*."); ok {
		return suffix, true
	}
	return strings.CutPrefix(value, ".")
}

func (b *domainPatternBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for label := host; label != ""; {
		if _, ok := b.suffixes[label]; ok {
			return true
		}
		_, rest, found := strings.Cut(label, ".")
		if !found {
			break
		}
		label = rest
	}
	return false
}
