package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepair(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"fences and trailing commas", "```json\n{\"a\": [1, 2,], \"b\": {\"c\": 1,},}\n```", `{"a": [1, 2], "b": {"c": 1}}`, true},
		{"surrounding prose", `Here you go: {"a":1} thanks`, `{"a":1}`, true},
		{"open string", `{"a":"x","b":"yy`, `{"a":"x","b":"yy"}`, true},
		{"dangling key", `{"a":1,"b"`, `{"a":1}`, true},
		{"dangling colon", `{"a":1,"b":`, `{"a":1,"b":null}`, true},
		{"partial literal", `{"a":[1,2,{"c":tr`, `{"a":[1,2]}`, true},
		{"comma inside string", `{"a":"x, }`, `{"a":"x, }"}`, true},
		{"escaped quote", `{"a":"say \"hi`, `{"a":"say \"hi"}`, true},
		{"no json", "no json here", "no json here", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, parseErr := Decode(tc.in)
			require.Error(t, parseErr)
			got, ok := Repair(tc.in, parseErr)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRepairIsPure(t *testing.T) {
	t.Parallel()

	in := `{"a":[1,2,`
	_, parseErr := Decode(in)
	first, ok := Repair(in, parseErr)
	require.True(t, ok)
	second, _ := Repair(in, parseErr)
	require.Equal(t, first, second)
	require.Equal(t, `{"a":[1,2]}`, first)
}

func TestDecodeStrictTopLevel(t *testing.T) {
	t.Parallel()

	_, err := Decode(`{"stage_1_ai_visibility":{},"bogus":1,"also":2}`)
	var violation *SchemaViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, []string{`unknown field "also"`, `unknown field "bogus"`}, violation.Violations)

	doc, err := Decode(`{"stage_1_ai_visibility":{"hard_sentence":"x","extra":true}}`)
	require.NoError(t, err, "nested objects tolerate extra keys")
	require.Equal(t, "x", doc.Stage1.HardSentence)

	_, err = Decode(`{"stage_1_ai_visibility":{"chatgpt_visibility_percent":"high"}}`)
	require.ErrorAs(t, err, &violation)
	require.Contains(t, violation.Violations[0], "chatgpt_visibility_percent")

	var parseErr *ParseError
	_, err = Decode(`[1,2]`)
	require.ErrorAs(t, err, &parseErr)
	require.False(t, parseErr.Unterminated)

	_, err = Decode(`{"appendix":`)
	require.ErrorAs(t, err, &parseErr)
	require.True(t, parseErr.Unterminated)
}
