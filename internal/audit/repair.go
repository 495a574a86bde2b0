package audit

import (
	"encoding/json"
	"errors"
	"strings"
)

// maxCutbacks bounds how many trailing members Repair may drop while
// closing a truncated document.
const maxCutbacks = 64

// Repair attempts a syntactic fix of generated text: code fences and
// surrounding prose are stripped, trailing commas removed and, when the
// parse error says the input ended early, open strings and containers are
// closed. Incomplete trailing members are dropped. It reports whether the
// result is valid JSON. Repair never invents content.
func Repair(text string, parseErr error) (string, bool) {
	s := stripFences(text)
	if i := strings.IndexByte(s, '{'); i > 0 {
		s = s[i:]
	}
	s = dropTrailingCommas(s)
	if json.Valid([]byte(s)) {
		return s, true
	}

	var pe *ParseError
	unterminated := errors.As(parseErr, &pe) && pe.Unterminated
	if !unterminated {
		if j := strings.LastIndexByte(s, '}'); j >= 0 && json.Valid([]byte(s[:j+1])) {
			return s[:j+1], true
		}
		// Truncation mid-token does not always surface as an early EOF.
		if !openAtEnd(s) {
			return s, false
		}
	}

	for range maxCutbacks {
		closed := closeOpen(s)
		if json.Valid([]byte(closed)) {
			return closed, true
		}
		cut := lastStructuralComma(s)
		if cut < 0 {
			return closed, false
		}
		s = s[:cut]
	}
	return s, false
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// scan walks s outside of string literals, calling visit with the byte
// index and the container stack at that point.
func scan(s string, visit func(i int, c byte, stack []byte)) (stack []byte, inString bool) {
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		if visit != nil {
			visit(i, c, stack)
		}
	}
	return stack, inString
}

func dropTrailingCommas(s string) string {
	var drop []int
	pending := -1
	scan(s, func(i int, c byte, _ []byte) {
		switch {
		case c == ',':
			pending = i
		case c == '}' || c == ']':
			if pending >= 0 {
				drop = append(drop, pending)
			}
			pending = -1
		case c == ' ' || c == '\n' || c == '\r' || c == '\t':
		default:
			pending = -1
		}
	})
	if len(drop) == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, i := range drop {
		b.WriteString(s[prev:i])
		prev = i + 1
	}
	b.WriteString(s[prev:])
	return b.String()
}

func openAtEnd(s string) bool {
	stack, inString := scan(s, nil)
	return inString || len(stack) > 0
}

// closeOpen terminates an open string, removes a dangling comma, fills a
// dangling key with null and closes containers innermost first.
func closeOpen(s string) string {
	stack, inString := scan(s, nil)
	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \n\r\t")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}
	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// lastStructuralComma returns the index of the last comma outside a string
// that is still inside an open container, or -1.
func lastStructuralComma(s string) int {
	last := -1
	scan(s, func(i int, c byte, stack []byte) {
		if c == ',' && len(stack) > 0 {
			last = i
		}
	})
	return last
}
