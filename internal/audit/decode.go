package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const unexpectedEOF = "unexpected end of JSON input"

// Decode parses generated text into a Document. Unknown top-level keys and
// type mismatches are schema violations; nested objects tolerate extra keys.
func Decode(text string) (Document, error) {
	data := []byte(stripFences(text))

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Document{}, asParseError(err)
	}
	if top == nil {
		return Document{}, &ParseError{Msg: "document is not a JSON object"}
	}

	var unknown []string
	for key := range top {
		if _, ok := documentFields[key]; !ok {
			unknown = append(unknown, fmt.Sprintf("unknown field %q", key))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Document{}, &SchemaViolationError{Violations: unknown}
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Document{}, &SchemaViolationError{Violations: []string{
				fmt.Sprintf("field %s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value),
			}}
		}
		return Document{}, asParseError(err)
	}
	return doc, nil
}

func asParseError(err error) *ParseError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{
			Offset:       syntaxErr.Offset,
			Msg:          syntaxErr.Error(),
			Unterminated: syntaxErr.Error() == unexpectedEOF,
		}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{Offset: typeErr.Offset, Msg: "document is not a JSON object"}
	}
	return &ParseError{Msg: err.Error()}
}
