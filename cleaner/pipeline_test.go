package cleaner

import (
	"strings"
	"testing"

	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/peel/models"
)

func TestFallbackContent_PrefersExcerpt(t *testing.T) {
	article := readability.Article{Excerpt: "A short excerpt."}
	og := models.OGMetadata{Description: "An OG description."}
	got := fallbackContent(article, og, "<html><body>visible text</body></html>")
	if got != "A short excerpt." {
		t.Errorf("expected excerpt to win, got %q", got)
	}
}

func TestFallbackContent_FallsBackToOGDescription(t *testing.T) {
	article := readability.Article{}
	og := models.OGMetadata{Description: "An OG description."}
	got := fallbackContent(article, og, "<html><body>visible text</body></html>")
	if got != "An OG description." {
		t.Errorf("expected OG description, got %q", got)
	}
}

func TestFallbackContent_FallsBackToVisibleText(t *testing.T) {
	article := readability.Article{}
	og := models.OGMetadata{}
	rawHTML := "<html><body>" + strings.Repeat("word ", 200) + "</body></html>"
	got := fallbackContent(article, og, rawHTML)
	if got == "" {
		t.Fatal("expected non-empty fallback content")
	}
	if len(got) > 500 {
		t.Errorf("expected fallback visible text capped at 500 chars, got %d", len(got))
	}
}

func TestClean_EmptyExtractionFallsBackToNonZeroTokens(t *testing.T) {
	c := NewCleaner()
	// A body whose only content is inside a <script>, so readability and
	// pruning both reduce it to nothing, but there's a meta description
	// and non-trivial raw HTML to fall back to.
	rawHTML := `<html><head><meta name="description" content="A page about nothing in particular."></head>` +
		`<body><script>var x = 1;</script></body></html>`

	result, err := c.Clean(rawHTML, "https://example.com/empty", "markdown", "readability")
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	if result.Tokens.CleanedEstimate <= 0 {
		t.Errorf("expected a non-zero token estimate via the zero-token safety net, got %d", result.Tokens.CleanedEstimate)
	}
	if strings.TrimSpace(result.Content) == "" {
		t.Error("expected non-empty content via the zero-token safety net")
	}
}
