package detector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-visibility-audit/internal/crawler"
)

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	require.True(t, h.ShouldPromote(crawler.RenderProbe{StatusCode: 200}))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<html><body><div id="__next"></div></body></html>`),
	}
	require.True(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<html><script>var a=1;</script><p>t</p></html>`),
		WordCount:  1,
	}
	require.True(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_NoscriptNotice(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<html><body><noscript>Please enable JavaScript to continue.</noscript></body></html>`),
		WordCount:  5,
	}
	require.True(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_AngularRoot(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<html><body><app-root ng-version="17.0.0"></app-root></body></html>`),
	}
	require.True(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_EnoughText(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<div id="root"><p>server rendered copy with plenty of words in it</p></div>`),
		WordCount:  10,
	}
	require.False(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_PlainThinPage(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{
		StatusCode: 200,
		HTML:       []byte(`<html><body><p>Coming soon</p></body></html>`),
		WordCount:  2,
	}
	require.False(t, h.ShouldPromote(probe))
}

func TestHeuristic_ShouldPromote_DisabledForNon200(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10)
	probe := crawler.RenderProbe{StatusCode: 404, HTML: []byte("not found")}
	require.False(t, h.ShouldPromote(probe))
}

func TestNewHeuristicDefault(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultMinWords, NewHeuristic(0).MinWords)
}
