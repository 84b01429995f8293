package contentrouter

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/use-agent/peel/models"
)

// routePDF extracts plain text and page count from a PDF body.
func routePDF(sourceURL string, body []byte) (*models.PeelResult, bool, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, true, models.NewPeelError(models.ErrCodeParse, "failed to open PDF", err)
	}

	var text strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}

	content := normaliseWhitespace(text.String())
	result := finish(sourceURL, content, &models.DocumentMeta{
		Kind:      "pdf",
		PageCount: numPages,
		WordCount: len(strings.Fields(content)),
	}, nil, 0.85)
	return result, true, nil
}

// normaliseWhitespace collapses runs of whitespace, matching the spec's
// "normalise whitespace" instruction for extracted PDF text.
func normaliseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
