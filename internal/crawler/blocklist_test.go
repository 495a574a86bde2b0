package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainPatternBlocklist(t *testing.T) {
	t.Parallel()

	bl := newDomainPatternBlocklist([]string{"Competitor.example ", "*.internal", ".corp", "*."})
	require.NotNil(t, bl)

	cases := []struct {
		host    string
		blocked bool
	}{
		{"competitor.example", true},
		{"COMPETITOR.EXAMPLE", true},
		{"shop.competitor.example", false},
		{"db.internal", true},
		{"internal", true},
		{"a.b.corp", true},
		{"corp.example.com", false},
		{"acme.com", false},
		{" ", false},
	}
	for _, tc := range cases {
		t.Run(tc.host, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.blocked, bl.IsBlocked(tc.host))
		})
	}
}

func TestDomainPatternBlocklistEmpty(t *testing.T) {
	t.Parallel()

	bl := newDomainPatternBlocklist([]string{" ", "", "."})
	assert.Nil(t, bl)
	assert.False(t, bl.IsBlocked("anything.example"))
}
