package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{name: "text", input: "hello world", want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	h := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := h.Hash([]byte(tt.input))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestHasherDistinguishesURLs(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("https://acme.com/pricing"))
	require.NoError(t, err)
	b, err := h.Hash([]byte("https://acme.com/pricing/"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 64)
}
