package cleaner

import (
	"strings"
	"testing"
)

func TestScoreQuality_EmptyContent(t *testing.T) {
	if got := ScoreQuality("", "<html></html>"); got != 0 {
		t.Errorf("expected 0 for empty content, got %f", got)
	}
}

func TestScoreQuality_WellFormedArticleScoresHigh(t *testing.T) {
	html := "<html><body>" + strings.Repeat("<div class=\"chrome\">nav</div>", 40) +
		"<article><h1>Title</h1>" + strings.Repeat("<p>Some real article prose about a topic.</p>", 20) +
		"</article></body></html>"

	content := "# Title\n\n" + strings.Repeat("Some real article prose about a topic.\n\n", 20)

	got := ScoreQuality(content, html)
	if got <= 0.5 {
		t.Errorf("expected a reasonably high quality score for a well-formed article, got %f", got)
	}
	if got > 1 {
		t.Errorf("quality score must not exceed 1, got %f", got)
	}
}

func TestScoreQuality_NoCompressionScoresLower(t *testing.T) {
	html := "tiny"
	content := "tiny"
	got := ScoreQuality(content, html)
	if got >= 1 {
		t.Errorf("expected an undercompressed stub to score below 1, got %f", got)
	}
}
